// Package gateway adapts hosted-checkout payment providers to the ledger's
// status vocabulary.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"barangay/pkg/utils"

	"github.com/shopspring/decimal"
)

type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	ZipCode string
}

type Buyer struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Phone      string
	Address    Address
}

type Item struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

type RedirectURLs struct {
	Success string
	Failure string
	Cancel  string
}

// CheckoutRequest describes one hosted checkout session. ReferenceNumber is
// sent as the provider's idempotent external reference.
type CheckoutRequest struct {
	ReferenceNumber string
	Description     string
	Buyer           Buyer
	Items           []Item
	Total           decimal.Decimal
	Currency        string
	Shipping        bool
	RedirectURLs    RedirectURLs
}

type Checkout struct {
	CheckoutID  string
	RedirectURL string
}

// WebhookEvent identifies the payment a notification is about. Status is the
// provider's claim and is only used for logging; the ledger re-fetches truth.
type WebhookEvent struct {
	CheckoutID      string
	ReferenceNumber string
	Status          string
}

type PaymentGateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Cancel(ctx context.Context, checkoutID string) error
	// GetStatus returns the provider status in the gateway vocabulary
	// (PAYMENT_SUCCESS, PAYMENT_FAILED, ...). Use MapStatus to translate it.
	GetStatus(ctx context.Context, checkoutID string) (string, error)
	ParseWebhook(ctx context.Context, body []byte, header http.Header) (*WebhookEvent, error)
}

// Error wraps a failed provider call. Provider secrets never end up in it.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == utils.ErrGateway }
