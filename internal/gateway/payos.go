package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/payOSHQ/payos-lib-golang"
)

type PayOSConfig struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
}

// PayOSClient drives payOS payment links. payOS identifies an order by a
// numeric order code, which is used as the checkout id.
type PayOSClient struct {
	cfg     PayOSConfig
	keyOnce sync.Once
	keyErr  error
}

func NewPayOSClient(cfg PayOSConfig) *PayOSClient {
	return &PayOSClient{cfg: cfg}
}

func (p *PayOSClient) Name() string { return "payos" }

// init registers credentials with the SDK, which keeps them globally.
func (p *PayOSClient) init() error {
	p.keyOnce.Do(func() {
		p.keyErr = payos.Key(p.cfg.ClientID, p.cfg.APIKey, p.cfg.ChecksumKey)
	})
	return p.keyErr
}

// payOS native statuses, translated into the gateway vocabulary.
var payOSStatuses = map[string]string{
	"PAID":      StatusPaymentSuccess,
	"CANCELLED": StatusPaymentCancelled,
	"EXPIRED":   StatusPaymentExpired,
	"FAILED":    StatusPaymentFailed,
}

func translatePayOSStatus(s string) string {
	if v, ok := payOSStatuses[strings.ToUpper(s)]; ok {
		return v
	}
	return strings.ToUpper(s)
}

// newOrderCode keeps the code within the 13 digits payOS accepts.
func newOrderCode(now time.Time) int {
	return int(now.Unix()%1_000_000_000)*10_000 + rand.Intn(9000) + 1000
}

// runCtx runs an SDK call that does not take a context, honouring ctx's deadline.
func runCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *PayOSClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if err := p.init(); err != nil {
		return nil, &Error{Op: "create checkout", Err: err}
	}

	items := make([]payos.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, payos.Item{
			Name:     it.Name,
			Price:    int(it.Amount.IntPart()),
			Quantity: 1,
		})
	}

	orderCode := newOrderCode(time.Now())
	body := payos.CheckoutRequestType{
		OrderCode:   orderCode,
		Amount:      int(req.Total.IntPart()),
		Items:       items,
		Description: req.ReferenceNumber,
		CancelUrl:   req.RedirectURLs.Cancel,
		ReturnUrl:   req.RedirectURLs.Success,
	}

	resp, err := runCtx(ctx, func() (*payos.CheckoutResponseDataType, error) {
		return payos.CreatePaymentLink(body)
	})
	if err != nil {
		return nil, &Error{Op: "create checkout", Err: err}
	}
	return &Checkout{
		CheckoutID:  strconv.Itoa(orderCode),
		RedirectURL: resp.CheckoutUrl,
	}, nil
}

func (p *PayOSClient) Cancel(ctx context.Context, checkoutID string) error {
	if err := p.init(); err != nil {
		return &Error{Op: "cancel", Err: err}
	}
	reason := "Cancelled by resident"
	_, err := runCtx(ctx, func() (*payos.PaymentLinkDataType, error) {
		return payos.CancelPaymentLink(checkoutID, &reason)
	})
	if err != nil {
		return &Error{Op: "cancel", Err: err}
	}
	return nil
}

func (p *PayOSClient) GetStatus(ctx context.Context, checkoutID string) (string, error) {
	if err := p.init(); err != nil {
		return "", &Error{Op: "get status", Err: err}
	}
	info, err := runCtx(ctx, func() (*payos.PaymentLinkDataType, error) {
		return payos.GetPaymentLinkInformation(checkoutID)
	})
	if err != nil {
		return "", &Error{Op: "get status", Err: err}
	}
	return translatePayOSStatus(info.Status), nil
}

// ParseWebhook verifies the payOS checksum before trusting the order code.
func (p *PayOSClient) ParseWebhook(_ context.Context, body []byte, _ http.Header) (*WebhookEvent, error) {
	if err := p.init(); err != nil {
		return nil, &Error{Op: "parse webhook", Err: err}
	}
	var hook payos.WebhookType
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, &Error{Op: "parse webhook", Err: err}
	}
	data, err := payos.VerifyPaymentWebhookData(hook)
	if err != nil {
		return nil, &Error{Op: "parse webhook", Err: fmt.Errorf("verify: %w", err)}
	}
	if data == nil || data.OrderCode == 0 {
		return nil, &Error{Op: "parse webhook", Err: errors.New("missing order code")}
	}
	return &WebhookEvent{CheckoutID: strconv.Itoa(data.OrderCode)}, nil
}
