package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct {
	cfg *models.SiteConfig
}

func (s *stubConfig) Get(ctx context.Context) (*models.SiteConfig, error) {
	out := *s.cfg
	return &out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *recordingNotifier) Notify(ctx context.Context, order *models.Order, cfg *models.SiteConfig) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

// fakeGateway serves the two gateway endpoints the service touches.
type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]gatewayPayment
	lookups  int
}

type gatewayPayment struct {
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/checkout/preferences", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gateway.Preference{
			ID:               "pref-1",
			InitPoint:        "https://gateway.example/init",
			SandboxInitPoint: "https://sandbox.gateway.example/init",
		})
	})
	mux.HandleFunc("/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lookups++
		payment, ok := f.payments[r.URL.Path[len("/v1/payments/"):]]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Payment not found"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                 999,
			"status":             payment.Status,
			"external_reference": payment.ExternalReference,
		})
	})
	return mux
}

type fixture struct {
	service  *OrderService
	repo     *store.FileStore
	notifier *recordingNotifier
	gateway  *fakeGateway
	config   *stubConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fg := &fakeGateway{payments: map[string]gatewayPayment{}}
	srv := httptest.NewServer(fg.handler())
	t.Cleanup(srv.Close)

	repo, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	cfg := &stubConfig{cfg: &models.SiteConfig{
		WhatsAppNumber:     "5542999999999",
		GatewayAccessToken: "tok-123",
	}}

	client := gateway.NewClient(srv.URL, gateway.CallbackConfig{
		SuccessURL:      "https://shop.example.com/checkout/success",
		FailureURL:      "https://shop.example.com/checkout/failure",
		PendingURL:      "https://shop.example.com/checkout/pending",
		NotificationURL: "https://shop.example.com/webhooks/payments",
	})

	notifier := &recordingNotifier{}
	dispatcher := worker.NewDispatcher(16)
	dispatcher.Start(context.Background(), 1)
	t.Cleanup(dispatcher.Stop)

	svc := NewOrderService(repo, cfg, client, notifier, nil, nil, dispatcher)
	return &fixture{service: svc, repo: repo, notifier: notifier, gateway: fg, config: cfg}
}

func validRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Customer: models.Customer{
			Name:  "Maria Silva",
			Email: "maria@example.com",
			Phone: "55 42 99162-8586",
		},
		Address: models.Address{
			Street: "Rua das Flores", Number: "100",
			Neighborhood: "Centro", City: "Ponta Grossa", State: "PR", PostalCode: "84010-000",
		},
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Ceramic Mug", ProductSKU: "MUG-01", Quantity: 2, UnitPrice: 140.00},
		},
		Subtotal:      280.00,
		ShippingFee:   20.00,
		Total:         300.00,
		PaymentMethod: models.PaymentMethodCheckout,
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, order.CreatedAt, order.UpdatedAt)
	assert.Equal(t, 300.00, order.Total)
}

func TestCreateOrderTotalsMismatch(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Total = 310.00

	_, err := f.service.CreateOrder(context.Background(), req)
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestCreateOrderMissingFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"no name", func(r *CreateOrderRequest) { r.Customer.Name = "" }},
		{"no phone", func(r *CreateOrderRequest) { r.Customer.Phone = "" }},
		{"no email", func(r *CreateOrderRequest) { r.Customer.Email = "" }},
		{"no street", func(r *CreateOrderRequest) { r.Address.Street = "" }},
		{"no number", func(r *CreateOrderRequest) { r.Address.Number = "" }},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"bad method", func(r *CreateOrderRequest) { r.PaymentMethod = "carrier-pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := f.service.CreateOrder(context.Background(), req)
			var validation *models.ValidationError
			require.ErrorAs(t, err, &validation)
		})
	}
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	pref, err := f.service.InitiatePayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.NotEmpty(t, pref.InitPoint)

	// Correlation is established by the webhook, not here.
	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PaymentID)
	assert.Equal(t, order.UpdatedAt, stored.UpdatedAt)
}

func TestInitiatePaymentWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.config.cfg.GatewayAccessToken = ""

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	_, err = f.service.InitiatePayment(ctx, order.ID)
	var notConfigured *models.NotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
}

func TestInitiatePaymentUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.InitiatePayment(context.Background(), "ghost")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestInitiatePaymentManualMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.PaymentMethod = models.PaymentMethodManual
	order, err := f.service.CreateOrder(ctx, req)
	require.NoError(t, err)

	_, err = f.service.InitiatePayment(ctx, order.ID)
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func webhookBody(dataID string) []byte {
	return []byte(fmt.Sprintf(`{"type":"payment","data":{"id":"%s"}}`, dataID))
}

func TestHandleWebhookApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)
	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: order.ID}

	ack, err := f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)
	assert.True(t, ack.OK)

	updated, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, updated.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, "999", updated.PaymentID)
	assert.Equal(t, "999", updated.NotificationID)

	assert.Eventually(t, func() bool { return f.notifier.count() == 1 },
		2*time.Second, 10*time.Millisecond, "notification dispatched once")
}

func TestHandleWebhookDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)
	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: order.ID}

	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	afterFirst, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	ack, err := f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)
	assert.True(t, ack.OK)

	afterSecond, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, afterFirst.PaymentStatus, afterSecond.PaymentStatus)
	assert.Equal(t, afterFirst.Status, afterSecond.Status)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.notifier.count(), "duplicate delivery must not notify again")
}

func TestHandleWebhookTerminalStateSticks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: order.ID}
	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)

	f.gateway.payments["999"] = gatewayPayment{Status: "rejected", ExternalReference: order.ID}
	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)

	updated, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, updated.PaymentStatus)
}

func TestHandleWebhookResolvesByStoredPaymentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	// First delivery links the payment id with an external reference.
	f.gateway.payments["999"] = gatewayPayment{Status: "pending", ExternalReference: order.ID}
	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)

	// Later delivery carries no external reference; resolution falls back
	// to the stored correlation ids.
	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: ""}
	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)

	updated, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, updated.PaymentStatus)
}

func TestHandleWebhookUnparseablePayload(t *testing.T) {
	f := newFixture(t)

	ack, err := f.service.HandleWebhook(context.Background(), []byte("not json at all"))
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Zero(t, f.gateway.lookups, "no gateway call for garbage payloads")
}

func TestHandleWebhookSandboxSentinel(t *testing.T) {
	f := newFixture(t)

	ack, err := f.service.HandleWebhook(context.Background(), webhookBody(sandboxDataID))
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Zero(t, f.gateway.lookups)
}

func TestHandleWebhookMissingDataID(t *testing.T) {
	f := newFixture(t)

	ack, err := f.service.HandleWebhook(context.Background(), []byte(`{"type":"payment"}`))
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Zero(t, f.gateway.lookups)
}

func TestHandleWebhookUnknownType(t *testing.T) {
	f := newFixture(t)

	ack, err := f.service.HandleWebhook(context.Background(),
		[]byte(`{"type":"plan","data":{"id":"777"}}`))
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Zero(t, f.gateway.lookups)
}

func TestHandleWebhookUnmatchedPayment(t *testing.T) {
	f := newFixture(t)

	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: "no-such-order"}

	ack, err := f.service.HandleWebhook(context.Background(), webhookBody("999"))
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Contains(t, ack.Note, "no matching order")
}

func TestHandleWebhookMissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.config.cfg.GatewayAccessToken = ""

	_, err := f.service.HandleWebhook(context.Background(), webhookBody("999"))
	var notConfigured *models.NotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
}

func TestHandleWebhookGatewayLookupFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleWebhook(context.Background(), webhookBody("does-not-exist"))
	var gatewayErr *models.GatewayRequestError
	require.ErrorAs(t, err, &gatewayErr)
}

func TestUpdateOrderRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	bogus := "misplaced"
	_, err = f.service.UpdateOrder(ctx, order.ID, models.OrderUpdate{Status: &bogus})
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestListOrdersFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)
	_, err = f.service.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	f.gateway.payments["999"] = gatewayPayment{Status: "approved", ExternalReference: first.ID}
	_, err = f.service.HandleWebhook(ctx, webhookBody("999"))
	require.NoError(t, err)

	approved, err := f.service.ListOrders(ctx, models.OrderFilter{PaymentStatus: models.PaymentStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, first.ID, approved[0].ID)

	all, err := f.service.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
