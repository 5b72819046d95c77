package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"barangay/pkg/utils"

	"github.com/shopspring/decimal"
)

func sampleCheckout() CheckoutRequest {
	return CheckoutRequest{
		ReferenceNumber: "TXN-20250101-ABCDE",
		Buyer: Buyer{
			FirstName: "Juan",
			LastName:  "Dela Cruz",
			Email:     "juan@example.com",
			Phone:     "+639171234567",
			Address:   Address{Line1: "12 Rizal St", City: "Quezon City", State: "Metro Manila", ZipCode: "1100"},
		},
		Items: []Item{
			{Code: "PROCESSING_FEE", Name: "Processing fee", Amount: decimal.RequireFromString("280")},
			{Code: "SERVICE_CHARGE", Name: "Service charge", Amount: decimal.RequireFromString("20")},
		},
		Total:    decimal.RequireFromString("300"),
		Currency: "PHP",
		RedirectURLs: RedirectURLs{
			Success: "https://portal.test/payments/return/success?requestId=1&transactionId=TXN-20250101-ABCDE",
			Failure: "https://portal.test/payments/return/failed?requestId=1&transactionId=TXN-20250101-ABCDE",
			Cancel:  "https://portal.test/payments/return/cancelled?requestId=1&transactionId=TXN-20250101-ABCDE",
		},
	}
}

func TestMayaCreateCheckout(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/v1/checkouts" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, _, ok := r.BasicAuth()
		if !ok || user != "pk-test" {
			t.Errorf("expected public key basic auth, got %q", user)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !strings.Contains(string(raw), `"value":300.00`) {
			t.Errorf("total not sent with two decimals: %s", raw)
		}
		_, _ = w.Write([]byte(`{"checkoutId":"chk-1","redirectUrl":"https://pay.test/chk-1"}`))
	}))
	defer srv.Close()

	client := NewMayaClient(MayaConfig{BaseURL: srv.URL, PublicKey: "pk-test", SecretKey: "sk-test"})
	out, err := client.CreateCheckout(context.Background(), sampleCheckout())
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if out.CheckoutID != "chk-1" || out.RedirectURL != "https://pay.test/chk-1" {
		t.Fatalf("unexpected checkout %+v", out)
	}
	if gotBody["requestReferenceNumber"] != "TXN-20250101-ABCDE" {
		t.Errorf("reference not sent: %v", gotBody["requestReferenceNumber"])
	}
	items, _ := gotBody["items"].([]any)
	if len(items) != 2 {
		t.Errorf("expected 2 line items, got %d", len(items))
	}
	redirect, _ := gotBody["redirectUrl"].(map[string]any)
	if !strings.Contains(redirect["cancel"].(string), "transactionId=TXN-20250101-ABCDE") {
		t.Errorf("cancel url missing transaction id: %v", redirect["cancel"])
	}
}

func TestMayaGetStatusAndCancel(t *testing.T) {
	var cancelled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		if user != "sk-test" {
			t.Errorf("expected secret key, got %q", user)
		}
		switch r.URL.Path {
		case "/payments/v1/payments/chk-1/status":
			_, _ = w.Write([]byte(`{"id":"chk-1","status":"PAYMENT_SUCCESS"}`))
		case "/payments/v1/payments/chk-1/cancel":
			cancelled = true
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewMayaClient(MayaConfig{BaseURL: srv.URL + "/", PublicKey: "pk-test", SecretKey: "sk-test"})
	status, err := client.GetStatus(context.Background(), "chk-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status != StatusPaymentSuccess {
		t.Fatalf("status = %s", status)
	}
	if err := client.Cancel(context.Background(), "chk-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("cancel endpoint not called")
	}
}

func TestMayaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	client := NewMayaClient(MayaConfig{BaseURL: srv.URL, PublicKey: "pk-secret-value", SecretKey: "sk-secret-value"})

	_, err := client.CreateCheckout(context.Background(), sampleCheckout())
	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected gateway error with 401, got %v", err)
	}
	if !errors.Is(err, utils.ErrGateway) {
		t.Fatal("expected ErrGateway")
	}
	if strings.Contains(err.Error(), "secret-value") {
		t.Fatalf("error leaks key: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.GetStatus(ctx, "chk-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMayaParseWebhook(t *testing.T) {
	client := NewMayaClient(MayaConfig{})
	ev, err := client.ParseWebhook(context.Background(),
		[]byte(`{"id":"chk-9","requestReferenceNumber":"TXN-20250101-ZZZZZ","paymentStatus":"PAYMENT_SUCCESS"}`), nil)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.CheckoutID != "chk-9" || ev.ReferenceNumber != "TXN-20250101-ZZZZZ" || ev.Status != StatusPaymentSuccess {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := client.ParseWebhook(context.Background(), []byte(`{}`), nil); err == nil {
		t.Fatal("expected error for empty notification")
	}
	if _, err := client.ParseWebhook(context.Background(), []byte(`not json`), nil); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
