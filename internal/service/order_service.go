package service

import (
	"context"
	"math"
	"strings"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// totals may arrive through float JSON; equality checks allow sub-cent drift
const totalsEpsilon = 0.005

// Notifier delivers an order summary to the merchant's messaging channel.
type Notifier interface {
	Notify(ctx context.Context, order *models.Order, cfg *models.SiteConfig) error
}

// OrderService owns the order lifecycle: creation, checkout initiation and
// webhook-driven payment reconciliation.
type OrderService struct {
	repo       store.OrderRepository
	settings   ConfigProvider
	gateway    *gateway.Client
	notifier   Notifier
	events     *broker.EventPublisher
	redis      *redisclient.Client
	dispatcher *worker.Dispatcher
	logger     *zap.Logger
}

// NewOrderService creates a new order service. events and redis may be nil;
// notifier and dispatcher are required.
func NewOrderService(
	repo store.OrderRepository,
	settings ConfigProvider,
	gatewayClient *gateway.Client,
	notifier Notifier,
	events *broker.EventPublisher,
	redis *redisclient.Client,
	dispatcher *worker.Dispatcher,
) *OrderService {
	return &OrderService{
		repo:       repo,
		settings:   settings,
		gateway:    gatewayClient,
		notifier:   notifier,
		events:     events,
		redis:      redis,
		dispatcher: dispatcher,
		logger:     util.GetLogger(),
	}
}

// CreateOrderRequest represents a checkout submission.
type CreateOrderRequest struct {
	Customer      models.Customer
	Address       models.Address
	Items         []models.OrderItem
	Subtotal      float64
	ShippingFee   float64
	Total         float64
	PaymentMethod string
	Notes         string
}

func (r *CreateOrderRequest) validate() error {
	required := []struct{ field, value string }{
		{"customer.name", r.Customer.Name},
		{"customer.phone", r.Customer.Phone},
		{"customer.email", r.Customer.Email},
		{"address.street", r.Address.Street},
		{"address.number", r.Address.Number},
	}
	for _, req := range required {
		if strings.TrimSpace(req.value) == "" {
			return &models.ValidationError{Field: req.field, Msg: "required"}
		}
	}

	if len(r.Items) == 0 {
		return &models.ValidationError{Field: "items", Msg: "at least one item required"}
	}
	for _, item := range r.Items {
		if item.Quantity < 1 {
			return &models.ValidationError{Field: "items", Msg: "quantity must be at least 1"}
		}
		if item.UnitPrice < 0 {
			return &models.ValidationError{Field: "items", Msg: "unit price must not be negative"}
		}
	}

	if r.Subtotal < 0 || r.ShippingFee < 0 || r.Total < 0 {
		return &models.ValidationError{Field: "totals", Msg: "amounts must not be negative"}
	}
	if math.Abs(r.Total-(r.Subtotal+r.ShippingFee)) > totalsEpsilon {
		return &models.ValidationError{Field: "total", Msg: "total must equal subtotal plus shipping fee"}
	}

	switch r.PaymentMethod {
	case models.PaymentMethodCheckout, models.PaymentMethodManual:
	default:
		return &models.ValidationError{Field: "payment_method", Msg: "unknown payment method"}
	}

	return nil
}

// CreateOrder validates the submission and persists a new pending order.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:            uuid.New().String(),
		Customer:      req.Customer,
		Address:       req.Address,
		Items:         req.Items,
		Subtotal:      req.Subtotal,
		ShippingFee:   req.ShippingFee,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.OrderStatusPending,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("storage").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("payment_method", order.PaymentMethod),
		zap.Float64("total", order.Total))

	s.events.PublishOrderCreated(ctx, order)

	return order, nil
}

// InitiatePayment creates a gateway checkout preference for an order and
// returns the redirect URLs. The order itself is not mutated: correlation is
// established when the webhook arrives, through the external reference.
func (s *OrderService) InitiatePayment(ctx context.Context, orderID string) (*gateway.Preference, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.InitiatePayment")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodCheckout {
		return nil, &models.ValidationError{
			Field: "payment_method",
			Msg:   "order does not use gateway checkout",
		}
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.HasGatewayCredentials() {
		return nil, &models.NotConfiguredError{Missing: "payment gateway access token"}
	}

	pref, err := s.gateway.CreatePreference(ctx, order, gateway.Credentials{
		AccessToken: cfg.GatewayAccessToken,
		PublicKey:   cfg.GatewayPublicKey,
	})
	if err != nil {
		return nil, err
	}

	util.CheckoutPreferencesTotal.Inc()
	return pref, nil
}

// GetOrder retrieves an order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

// ListOrders returns orders matching the filter.
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// UpdateOrder applies administrative edits to status and notes.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, upd models.OrderUpdate) (*models.Order, error) {
	if upd.Status != nil {
		switch *upd.Status {
		case models.OrderStatusPending, models.OrderStatusConfirmed,
			models.OrderStatusShipped, models.OrderStatusDelivered,
			models.OrderStatusCancelled:
		default:
			return nil, &models.ValidationError{Field: "status", Msg: "unknown order status"}
		}
	}
	return s.repo.UpdateOrder(ctx, orderID, upd)
}

// dispatchNotification queues the approved-order notification. Runs off the
// request path; failures stay in the worker's logs.
func (s *OrderService) dispatchNotification(order *models.Order) {
	o := *order
	s.dispatcher.Submit(worker.Task{
		Name: "order-notification",
		Fn: func(ctx context.Context) error {
			cfg, err := s.settings.Get(ctx)
			if err != nil {
				return err
			}
			return s.notifier.Notify(ctx, &o, cfg)
		},
	})
}
