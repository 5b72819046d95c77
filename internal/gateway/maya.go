package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -------------- Maya hosted checkout client ---------------

type MayaConfig struct {
	BaseURL   string
	PublicKey string
	SecretKey string
	Timeout   time.Duration
}

type MayaClient struct {
	HTTP *http.Client
	cfg  MayaConfig
}

func NewMayaClient(cfg MayaConfig) *MayaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MayaClient{
		HTTP: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

func (m *MayaClient) Name() string { return "maya" }

type mayaAmount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency,omitempty"`
}

type mayaContact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type mayaAddress struct {
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Line1        string `json:"line1,omitempty"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	CountryCode  string `json:"countryCode"`
	ShippingType string `json:"shippingType,omitempty"`
}

type mayaBuyer struct {
	FirstName       string       `json:"firstName"`
	MiddleName      string       `json:"middleName,omitempty"`
	LastName        string       `json:"lastName"`
	Contact         mayaContact  `json:"contact"`
	ShippingAddress *mayaAddress `json:"shippingAddress,omitempty"`
	BillingAddress  mayaAddress  `json:"billingAddress"`
}

type mayaItem struct {
	Name        string     `json:"name"`
	Quantity    int        `json:"quantity"`
	Code        string     `json:"code"`
	Amount      mayaAmount `json:"amount"`
	TotalAmount mayaAmount `json:"totalAmount"`
}

type mayaRedirect struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Cancel  string `json:"cancel"`
}

type mayaCheckoutBody struct {
	TotalAmount            mayaAmount   `json:"totalAmount"`
	Buyer                  mayaBuyer    `json:"buyer"`
	Items                  []mayaItem   `json:"items"`
	RedirectURL            mayaRedirect `json:"redirectUrl"`
	RequestReferenceNumber string       `json:"requestReferenceNumber"`
}

type mayaCheckoutResp struct {
	CheckoutID  string `json:"checkoutId"`
	RedirectURL string `json:"redirectUrl"`
}

type mayaStatusResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type mayaWebhook struct {
	ID                     string `json:"id"`
	RequestReferenceNumber string `json:"requestReferenceNumber"`
	Status                 string `json:"status"`
	PaymentStatus          string `json:"paymentStatus"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func buildMayaCheckout(req CheckoutRequest) mayaCheckoutBody {
	addr := mayaAddress{
		Line1:       req.Buyer.Address.Line1,
		Line2:       req.Buyer.Address.Line2,
		City:        req.Buyer.Address.City,
		State:       req.Buyer.Address.State,
		ZipCode:     req.Buyer.Address.ZipCode,
		CountryCode: "PH",
	}
	buyer := mayaBuyer{
		FirstName:      req.Buyer.FirstName,
		MiddleName:     req.Buyer.MiddleName,
		LastName:       req.Buyer.LastName,
		Contact:        mayaContact{Phone: req.Buyer.Phone, Email: req.Buyer.Email},
		BillingAddress: addr,
	}

	shipping := addr
	shipping.FirstName = req.Buyer.FirstName
	shipping.LastName = req.Buyer.LastName
	shipping.Phone = req.Buyer.Phone
	shipping.Email = req.Buyer.Email
	shipping.ShippingType = "ST" // standard
	buyer.ShippingAddress = &shipping

	items := make([]mayaItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, mayaItem{
			Name:        it.Name,
			Quantity:    1,
			Code:        it.Code,
			Amount:      mayaAmount{Value: money(it.Amount)},
			TotalAmount: mayaAmount{Value: money(it.Amount)},
		})
	}

	return mayaCheckoutBody{
		TotalAmount: mayaAmount{Value: money(req.Total), Currency: req.Currency},
		Buyer:       buyer,
		Items:       items,
		RedirectURL: mayaRedirect{
			Success: req.RedirectURLs.Success,
			Failure: req.RedirectURLs.Failure,
			Cancel:  req.RedirectURLs.Cancel,
		},
		RequestReferenceNumber: req.ReferenceNumber,
	}
}

func (m *MayaClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	var out mayaCheckoutResp
	if err := m.do(ctx, "create checkout", http.MethodPost, "/checkout/v1/checkouts", m.cfg.PublicKey, buildMayaCheckout(req), &out); err != nil {
		return nil, err
	}
	if out.CheckoutID == "" || out.RedirectURL == "" {
		return nil, &Error{Op: "create checkout", Err: errors.New("response missing checkoutId or redirectUrl")}
	}
	return &Checkout{CheckoutID: out.CheckoutID, RedirectURL: out.RedirectURL}, nil
}

func (m *MayaClient) Cancel(ctx context.Context, checkoutID string) error {
	path := "/payments/v1/payments/" + url.PathEscape(checkoutID) + "/cancel"
	return m.do(ctx, "cancel", http.MethodPost, path, m.cfg.SecretKey, nil, nil)
}

func (m *MayaClient) GetStatus(ctx context.Context, checkoutID string) (string, error) {
	var out mayaStatusResp
	path := "/payments/v1/payments/" + url.PathEscape(checkoutID) + "/status"
	if err := m.do(ctx, "get status", http.MethodGet, path, m.cfg.SecretKey, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ParseWebhook reads a Maya payment notification. Maya does not sign these;
// the caller re-fetches status instead of trusting the body.
func (m *MayaClient) ParseWebhook(_ context.Context, body []byte, _ http.Header) (*WebhookEvent, error) {
	var in mayaWebhook
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, &Error{Op: "parse webhook", Err: err}
	}
	if in.ID == "" && in.RequestReferenceNumber == "" {
		return nil, &Error{Op: "parse webhook", Err: errors.New("missing payment id and reference")}
	}
	status := in.PaymentStatus
	if status == "" {
		status = in.Status
	}
	return &WebhookEvent{CheckoutID: in.ID, ReferenceNumber: in.RequestReferenceNumber, Status: status}, nil
}

func (m *MayaClient) do(ctx context.Context, op, method, path, key string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.SetBasicAuth(key, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", truncate(raw, 200))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
