package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenant-payment-service/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntent() *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:        uuid.New(),
		InvoiceID: uuid.New(),
		TenantID:  uuid.New(),
		Amount:    750000,
		Method:    models.PaymentMethodOnline,
	}
}

func TestMidtransCreateRedirect(t *testing.T) {
	var gotAuth string
	var gotReq snapTransactionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/snap/v1/transactions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(snapTransactionResponse{
			Token:       "snap-token",
			RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/snap-token",
		})
	}))
	defer srv.Close()

	provider := NewMidtransProvider(srv.URL, "SB-server-key")
	intent := testIntent()

	info, err := provider.CreateRedirect(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, "https://app.sandbox.midtrans.com/snap/v4/redirection/snap-token", info.RedirectURL)
	assert.True(t, strings.HasPrefix(info.ExternalReference, "INV-"))
	assert.Equal(t, info.ExternalReference, gotReq.TransactionDetails.OrderID)
	assert.Equal(t, intent.Amount, gotReq.TransactionDetails.GrossAmount)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("SB-server-key:"))
	assert.Equal(t, wantAuth, gotAuth)
}

func TestMidtransCreateRedirect_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(snapTransactionResponse{
			ErrorMessages: []string{"Access denied due to unauthorized transaction"},
		})
	}))
	defer srv.Close()

	provider := NewMidtransProvider(srv.URL, "bad-key")

	_, err := provider.CreateRedirect(context.Background(), testIntent())
	require.ErrorIs(t, err, ErrGatewayRejected)
	assert.Contains(t, err.Error(), "unauthorized transaction")
}

func TestMidtransCheckStatus_PassesRawStatusThrough(t *testing.T) {
	for _, raw := range []string{StatusSettlement, StatusCapture, StatusPending, StatusDeny, StatusExpire} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v2/ORDER-1/status", r.URL.Path)
			json.NewEncoder(w).Encode(transactionStatusResponse{
				TransactionStatus: raw,
				StatusCode:        "200",
			})
		}))

		provider := NewMidtransProvider(srv.URL, "key")
		status, err := provider.CheckStatus(context.Background(), "ORDER-1")
		srv.Close()

		require.NoError(t, err)
		assert.Equal(t, raw, status)
	}
}

func TestMidtransCheckStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(transactionStatusResponse{
			StatusCode:    "404",
			StatusMessage: "Transaction doesn't exist.",
		})
	}))
	defer srv.Close()

	provider := NewMidtransProvider(srv.URL, "key")

	_, err := provider.CheckStatus(context.Background(), "ORDER-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMidtransCheckStatus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := NewMidtransProvider(srv.URL, "key")

	_, err := provider.CheckStatus(context.Background(), "ORDER-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
