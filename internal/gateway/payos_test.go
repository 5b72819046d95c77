package gateway

import (
	"strconv"
	"testing"
	"time"

	"github.com/payOSHQ/payos-lib-golang"
)

func TestNewOrderCode(t *testing.T) {
	for _, now := range []time.Time{
		time.Unix(0, 0),
		time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
		time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		code := newOrderCode(now)
		if code <= 0 {
			t.Fatalf("%v: code %d not positive", now, code)
		}
		if s := strconv.Itoa(code); len(s) > 13 {
			t.Errorf("%v: code %s longer than 13 digits", now, s)
		}

		// the SDK carries order codes as int in both directions
		body := payos.CheckoutRequestType{OrderCode: code}
		hook := payos.WebhookDataType{OrderCode: body.OrderCode}
		back, err := strconv.Atoi(strconv.Itoa(hook.OrderCode))
		if err != nil || back != code {
			t.Errorf("checkout id round trip = %d, %v", back, err)
		}
	}
}

func TestTranslatePayOSStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PAID", StatusPaymentSuccess},
		{"cancelled", StatusPaymentCancelled},
		{"EXPIRED", StatusPaymentExpired},
		{"PENDING", "PENDING"},
	}
	for _, tt := range tests {
		if got := translatePayOSStatus(tt.in); got != tt.want {
			t.Errorf("translatePayOSStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
