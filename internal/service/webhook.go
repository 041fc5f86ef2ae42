package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// sandboxDataID is the sentinel payment id the gateway sends on integration
// test pings. Those deliveries are acknowledged without any lookup.
const sandboxDataID = "123456"

const orderLockTTL = 10 * time.Second

// Acknowledgement is the webhook response body. The webhook path answers
// with HTTP success for every payload it could parse, whatever the
// downstream outcome: an application-level error returned to the gateway
// would only trigger a redelivery storm it cannot act on. Genuine
// misconfiguration and gateway transport failures are the two exceptions,
// reported through the error return.
type Acknowledgement struct {
	OK   bool   `json:"ok"`
	Note string `json:"note,omitempty"`
}

type webhookPayload struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	DataID string `json:"data_id"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func (p *webhookPayload) dataID() string {
	if id := p.Data.ID.String(); id != "" {
		return id
	}
	return p.DataID
}

func (p *webhookPayload) isPaymentNotification() bool {
	return p.Type == "payment" || strings.HasPrefix(p.Action, "payment.")
}

// HandleWebhook processes an inbound payment notification. A non-nil error
// is returned only for missing gateway credentials or a failed gateway
// lookup; everything else acknowledges successfully per the policy above.
//
// The flow is idempotent: redeliveries re-apply the same mapped status as a
// no-op (besides UpdatedAt), and the notification dispatcher fires only on
// the transition into approved, never on redelivered approved statuses.
func (s *OrderService) HandleWebhook(ctx context.Context, rawBody []byte) (*Acknowledgement, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.HandleWebhook")
	defer span.End()

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		util.WebhooksTotal.WithLabelValues("unparseable").Inc()
		s.logger.Debug("Ignoring unparseable webhook payload", zap.Error(err))
		return &Acknowledgement{OK: true, Note: "ignored: unparseable payload"}, nil
	}

	dataID := payload.dataID()
	if dataID == "" || dataID == sandboxDataID {
		util.WebhooksTotal.WithLabelValues("sandbox").Inc()
		return &Acknowledgement{OK: true, Note: "ignored: test notification"}, nil
	}

	if !payload.isPaymentNotification() {
		util.WebhooksTotal.WithLabelValues("unknown_type").Inc()
		s.logger.Debug("Ignoring non-payment webhook",
			zap.String("type", payload.Type),
			zap.String("action", payload.Action))
		return &Acknowledgement{OK: true, Note: "ignored: unsupported notification type"}, nil
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.HasGatewayCredentials() {
		// A webhook arriving without configured credentials is a real
		// misconfiguration, not a transient condition.
		util.WebhooksTotal.WithLabelValues("not_configured").Inc()
		return nil, &models.NotConfiguredError{Missing: "payment gateway access token"}
	}

	payment, err := s.gateway.GetPayment(ctx, dataID, gateway.Credentials{
		AccessToken: cfg.GatewayAccessToken,
		PublicKey:   cfg.GatewayPublicKey,
	})
	if err != nil {
		// Transport-level failure: let the gateway retry.
		util.WebhooksTotal.WithLabelValues("gateway_error").Inc()
		s.logger.Error("Payment lookup failed",
			zap.String("data_id", dataID), zap.Error(err))
		return nil, err
	}

	order := s.resolveOrder(ctx, payment, dataID)
	if order == nil {
		util.WebhooksTotal.WithLabelValues("order_not_found").Inc()
		s.logger.Warn("Payment does not match any order",
			zap.String("data_id", dataID),
			zap.String("external_reference", payment.ExternalReference))
		return &Acknowledgement{OK: true, Note: "ignored: no matching order"}, nil
	}

	upd := models.PaymentUpdate{
		PaymentID:      payment.ID.String(),
		NotificationID: dataID,
		PaymentStatus:  models.MapGatewayStatus(payment.Status),
	}

	s.lockOrder(ctx, order.ID)
	updated, approvedNow, err := s.repo.ApplyPaymentUpdate(ctx, order.ID, upd)
	s.unlockOrder(ctx, order.ID)
	if err != nil {
		// Acknowledge anyway: the gateway cannot fix a local persistence
		// bug and must not retry-storm on it. The failure stays in the
		// logs for operator follow-up.
		util.WebhooksTotal.WithLabelValues("update_failed").Inc()
		s.logger.Error("Failed to persist payment update",
			zap.String("order_id", order.ID),
			zap.String("data_id", dataID),
			zap.Error(err))
		return &Acknowledgement{OK: true, Note: "accepted: order update deferred"}, nil
	}

	util.WebhooksTotal.WithLabelValues("updated").Inc()
	s.logger.Info("Payment status reconciled",
		zap.String("order_id", updated.ID),
		zap.String("gateway_status", payment.Status),
		zap.String("payment_status", updated.PaymentStatus))

	s.events.PublishPaymentStatusChanged(ctx, updated)

	if approvedNow {
		util.PaymentsApprovedTotal.Inc()
		s.dispatchNotification(updated)
	}

	return &Acknowledgement{OK: true}, nil
}

// resolveOrder finds the local order for a payment: first by the external
// reference the preference carried, then by either stored correlation id.
func (s *OrderService) resolveOrder(ctx context.Context, payment *gateway.Payment, dataID string) *models.Order {
	if payment.ExternalReference != "" {
		order, err := s.repo.GetOrderByID(ctx, payment.ExternalReference)
		if err == nil {
			return order
		}
		var notFound *models.NotFoundError
		if !errors.As(err, &notFound) {
			s.logger.Error("Order lookup failed",
				zap.String("external_reference", payment.ExternalReference),
				zap.Error(err))
		}
	}

	order, err := s.repo.GetOrderByPaymentID(ctx, dataID)
	if err != nil {
		return nil
	}
	return order
}

// lockOrder takes the cross-replica order lock when Redis is configured.
// Best-effort: the repository's per-id atomicity holds regardless.
func (s *OrderService) lockOrder(ctx context.Context, orderID string) {
	if s.redis == nil {
		return
	}
	ok, err := s.redis.AcquireOrderLock(ctx, orderID, orderLockTTL)
	if err != nil || !ok {
		s.logger.Debug("Proceeding without cross-replica order lock",
			zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderService) unlockOrder(ctx context.Context, orderID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.ReleaseOrderLock(ctx, orderID); err != nil {
		s.logger.Debug("Failed to release order lock",
			zap.String("order_id", orderID), zap.Error(err))
	}
}
