package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tenant-payment-service/models"
)

// MidtransProvider implements PaymentProvider against the Midtrans Snap API.
type MidtransProvider struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

// NewMidtransProvider creates a new MidtransProvider. baseURL should be the
// sandbox or production API host without a trailing slash.
func NewMidtransProvider(baseURL, serverKey string) *MidtransProvider {
	return &MidtransProvider{
		baseURL:   baseURL,
		serverKey: serverKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ---- Midtrans API request/response structs ----

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapCustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
}

type snapExpiry struct {
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
}

type snapTransactionRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	CustomerDetails    *snapCustomerDetails   `json:"customer_details,omitempty"`
	Expiry             *snapExpiry            `json:"expiry,omitempty"`
}

type snapTransactionResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

type transactionStatusResponse struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
}

// ---- PaymentProvider implementation ----

// CreateRedirect opens a Snap transaction for the intent and returns the
// hosted payment page URL. The intent ID doubles as the gateway order id.
func (m *MidtransProvider) CreateRedirect(ctx context.Context, intent *models.PaymentIntent) (RedirectInfo, error) {
	orderID := fmt.Sprintf("INV-%s-%s", intent.InvoiceID.String()[:8], intent.ID.String()[:8])

	reqBody := snapTransactionRequest{
		TransactionDetails: snapTransactionDetails{
			OrderID:     orderID,
			GrossAmount: intent.Amount,
		},
		Expiry: &snapExpiry{Duration: 5, Unit: "minute"},
	}

	var resp snapTransactionResponse
	status, err := m.do(ctx, http.MethodPost, "/snap/v1/transactions", reqBody, &resp)
	if err != nil {
		return RedirectInfo{}, fmt.Errorf("snap transaction request failed: %w", err)
	}
	if status >= 400 {
		msg := "declined"
		if len(resp.ErrorMessages) > 0 {
			msg = resp.ErrorMessages[0]
		}
		return RedirectInfo{}, fmt.Errorf("%w: %s", ErrGatewayRejected, msg)
	}

	return RedirectInfo{
		RedirectURL:       resp.RedirectURL,
		ExternalReference: orderID,
	}, nil
}

// CheckStatus fetches the transaction status for an order id. Midtrans
// already speaks the normalized vocabulary (settlement/capture/pending/
// deny/cancel/expire), so the raw status passes through as-is.
func (m *MidtransProvider) CheckStatus(ctx context.Context, externalReference string) (string, error) {
	var resp transactionStatusResponse
	status, err := m.do(ctx, http.MethodGet, "/v2/"+externalReference+"/status", nil, &resp)
	if err != nil {
		return "", fmt.Errorf("status check failed: %w", err)
	}
	if status == http.StatusNotFound || resp.StatusCode == "404" {
		return "", ErrNotFound
	}
	if status >= 400 {
		return "", fmt.Errorf("gateway returned %d: %s", status, resp.StatusMessage)
	}

	return resp.TransactionStatus, nil
}

// do sends an authenticated request and decodes the JSON response into out.
// Returns the HTTP status code so callers can distinguish business rejections
// from transport failures.
func (m *MidtransProvider) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(m.serverKey))

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if len(data) > 0 && out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("invalid gateway response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// basicAuth encodes the server key the way Midtrans expects (key as
// username, empty password).
func basicAuth(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}
