package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// maxItemTitleLen is the gateway's limit on item titles.
const maxItemTitleLen = 256

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Credentials are the merchant's gateway credentials, sourced from the site
// configuration at call time.
type Credentials struct {
	AccessToken string
	PublicKey   string
}

// CallbackConfig holds the merchant-side URLs embedded in every preference:
// the three redirect targets and the webhook endpoint. The local order id is
// appended to each redirect as a query parameter.
type CallbackConfig struct {
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	NotificationURL string
}

// Client talks to the payment gateway's preference and payment APIs.
type Client struct {
	baseURL    string
	callbacks  CallbackConfig
	httpClient *http.Client
	logger     *zap.Logger

	// phone normalization rules, merchant-configurable
	phoneCountryCode string
	phoneLocalLen    int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPhoneRules sets the country calling code stripped from payer phones
// and the expected local number length.
func WithPhoneRules(countryCode string, localLen int) Option {
	return func(c *Client) {
		c.phoneCountryCode = countryCode
		c.phoneLocalLen = localLen
	}
}

// NewClient creates a gateway client. All calls carry a bounded timeout so a
// slow gateway cannot stall an inbound request indefinitely.
func NewClient(baseURL string, callbacks CallbackConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		callbacks:        callbacks,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		logger:           util.GetLogger(),
		phoneCountryCode: "55",
		phoneLocalLen:    11,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preference is the gateway's checkout session: the id plus the redirect
// URLs the buyer is sent to.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the slice of the gateway's payment resource the reconciliation
// flow needs.
type Payment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

type preferenceItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferencePayer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone *Phone `json:"phone,omitempty"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             preferencePayer  `json:"payer"`
	BackURLs          backURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url"`
}

// CreatePreference validates the order and creates a checkout preference.
// The order id travels as the external reference and inside every redirect
// URL, which is how the webhook later correlates gateway state back to the
// local order.
func (c *Client) CreatePreference(ctx context.Context, order *models.Order, creds Credentials) (*Preference, error) {
	req, err := c.buildPreferenceRequest(order)
	if err != nil {
		return nil, err
	}

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", creds, req, &pref); err != nil {
		return nil, err
	}

	c.logger.Info("Checkout preference created",
		zap.String("order_id", order.ID),
		zap.String("preference_id", pref.ID))
	return &pref, nil
}

// GetPayment looks up a payment by its gateway id.
func (c *Client) GetPayment(ctx context.Context, paymentID string, creds Credentials) (*Payment, error) {
	var payment Payment
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, creds, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) buildPreferenceRequest(order *models.Order) (*preferenceRequest, error) {
	if strings.TrimSpace(order.Customer.Name) == "" {
		return nil, &models.ValidationError{Field: "customer.name", Msg: "required"}
	}
	if !emailPattern.MatchString(order.Customer.Email) {
		return nil, &models.ValidationError{Field: "customer.email", Msg: "invalid email address"}
	}
	if len(order.Items) == 0 {
		return nil, &models.ValidationError{Field: "items", Msg: "at least one item required"}
	}

	items := make([]preferenceItem, 0, len(order.Items))
	for i, item := range order.Items {
		if item.UnitPrice <= 0 {
			return nil, &models.ValidationError{
				Field: fmt.Sprintf("items[%d].unit_price", i),
				Msg:   "must be greater than zero",
			}
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		title := item.ProductName
		if len(title) > maxItemTitleLen {
			title = title[:maxItemTitleLen]
		}
		items = append(items, preferenceItem{
			ID:        item.ProductID,
			Title:     title,
			Quantity:  qty,
			UnitPrice: item.UnitPrice,
		})
	}

	payer := preferencePayer{
		Name:  order.Customer.Name,
		Email: order.Customer.Email,
	}
	if phone, ok := NormalizePhone(order.Customer.Phone, c.phoneCountryCode, c.phoneLocalLen); ok {
		payer.Phone = &phone
	}

	return &preferenceRequest{
		Items: items,
		Payer: payer,
		BackURLs: backURLs{
			Success: withOrderParam(c.callbacks.SuccessURL, order.ID),
			Failure: withOrderParam(c.callbacks.FailureURL, order.ID),
			Pending: withOrderParam(c.callbacks.PendingURL, order.ID),
		},
		AutoReturn:        "approved",
		ExternalReference: order.ID,
		NotificationURL:   c.callbacks.NotificationURL,
	}, nil
}

// withOrderParam appends the order id query parameter to a redirect URL.
func withOrderParam(rawURL, orderID string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("order", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, creds Credentials, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &models.GatewayRequestError{Operation: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &models.GatewayRequestError{Operation: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.GatewayRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return &models.GatewayRequestError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.GatewayRequestError{Operation: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Gateway request rejected",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode))
		return &models.GatewayRequestError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &models.GatewayRequestError{Operation: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}
