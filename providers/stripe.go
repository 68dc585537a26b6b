package providers

import (
	"context"
	"fmt"

	"tenant-payment-service/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
)

// StripeProvider implements PaymentProvider using Stripe Checkout sessions.
// Stripe statuses are mapped into the normalized vocabulary so the
// reconciliation engine never sees provider-specific strings.
type StripeProvider struct {
	returnBase string
}

// NewStripeProvider creates a new StripeProvider. returnBase is the frontend
// URL the tenant lands on after the hosted page closes.
func NewStripeProvider(secretKey, returnBase string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{returnBase: returnBase}
}

func (s *StripeProvider) CreateRedirect(ctx context.Context, intent *models.PaymentIntent) (RedirectInfo, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("idr"),
					UnitAmount: stripe.Int64(intent.Amount * 100),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Invoice " + intent.InvoiceID.String()),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.returnBase + "/success"),
		CancelURL:  stripe.String(s.returnBase + "/cancelled"),
		Metadata: map[string]string{
			"invoice_id": intent.InvoiceID.String(),
			"tenant_id":  intent.TenantID.String(),
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return RedirectInfo{}, fmt.Errorf("%w: %s", ErrGatewayRejected, stripeErr.Msg)
		}
		return RedirectInfo{}, fmt.Errorf("checkout session create failed: %w", err)
	}

	return RedirectInfo{
		RedirectURL:       sess.URL,
		ExternalReference: sess.ID,
	}, nil
}

func (s *StripeProvider) CheckStatus(ctx context.Context, externalReference string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(externalReference, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode == 404 {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("checkout session get failed: %w", err)
	}

	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return StatusSettlement, nil
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return StatusExpire, nil
	default:
		return StatusPending, nil
	}
}
