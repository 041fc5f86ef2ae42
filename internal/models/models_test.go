package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapGatewayStatus(t *testing.T) {
	cases := map[string]string{
		"approved":     PaymentStatusApproved,
		"rejected":     PaymentStatusRejected,
		"cancelled":    PaymentStatusRejected,
		"refunded":     PaymentStatusRefunded,
		"charged_back": PaymentStatusRefunded,
		"pending":      PaymentStatusPending,
		"in_process":   PaymentStatusPending,
		"in_mediation": PaymentStatusPending,
		"something":    PaymentStatusPending,
		"":             PaymentStatusPending,
		"Approved":     PaymentStatusPending, // mapping is case-sensitive
	}

	for raw, want := range cases {
		assert.Equal(t, want, MapGatewayStatus(raw), "gateway status %q", raw)
	}
}

func pendingOrder() *Order {
	return &Order{
		ID:            "ord-1",
		PaymentStatus: PaymentStatusPending,
		Status:        OrderStatusPending,
	}
}

func TestApplyPaymentTransitionApproves(t *testing.T) {
	order := pendingOrder()
	now := time.Now()

	changed, approvedNow := ApplyPaymentTransition(order, PaymentUpdate{
		PaymentID:      "999",
		NotificationID: "999",
		PaymentStatus:  PaymentStatusApproved,
	}, now)

	assert.True(t, changed)
	assert.True(t, approvedNow)
	assert.Equal(t, PaymentStatusApproved, order.PaymentStatus)
	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.Equal(t, "999", order.PaymentID)
	assert.Equal(t, now, order.UpdatedAt)
}

func TestApplyPaymentTransitionRedeliveryIsNoop(t *testing.T) {
	order := pendingOrder()
	first := time.Now()
	ApplyPaymentTransition(order, PaymentUpdate{PaymentID: "999", PaymentStatus: PaymentStatusApproved}, first)

	second := first.Add(time.Minute)
	changed, approvedNow := ApplyPaymentTransition(order, PaymentUpdate{
		PaymentID:     "999",
		PaymentStatus: PaymentStatusApproved,
	}, second)

	assert.False(t, changed)
	assert.False(t, approvedNow, "redelivery must not re-trigger the approved transition")
	assert.Equal(t, second, order.UpdatedAt, "redelivery still bumps UpdatedAt")
}

func TestApplyPaymentTransitionTerminalIsSticky(t *testing.T) {
	order := pendingOrder()
	ApplyPaymentTransition(order, PaymentUpdate{PaymentStatus: PaymentStatusApproved}, time.Now())

	changed, approvedNow := ApplyPaymentTransition(order, PaymentUpdate{
		PaymentStatus: PaymentStatusRefunded,
	}, time.Now())

	assert.False(t, changed)
	assert.False(t, approvedNow)
	assert.Equal(t, PaymentStatusApproved, order.PaymentStatus)
}

func TestApplyPaymentTransitionKeepsAdvancedFulfillment(t *testing.T) {
	order := pendingOrder()
	order.Status = OrderStatusShipped

	ApplyPaymentTransition(order, PaymentUpdate{PaymentStatus: PaymentStatusApproved}, time.Now())

	assert.Equal(t, OrderStatusShipped, order.Status,
		"approval must not move fulfillment backwards")
}

func TestApplyPaymentTransitionPendingSubStatuses(t *testing.T) {
	order := pendingOrder()

	changed, approvedNow := ApplyPaymentTransition(order, PaymentUpdate{
		PaymentStatus: MapGatewayStatus("in_process"),
	}, time.Now())

	assert.False(t, changed)
	assert.False(t, approvedNow)
	assert.Equal(t, PaymentStatusPending, order.PaymentStatus)
}

func TestOrderFilterMatches(t *testing.T) {
	order := &Order{Status: OrderStatusConfirmed, PaymentStatus: PaymentStatusApproved}

	assert.True(t, OrderFilter{}.Matches(order))
	assert.True(t, OrderFilter{Status: OrderStatusConfirmed}.Matches(order))
	assert.True(t, OrderFilter{PaymentStatus: PaymentStatusApproved}.Matches(order))
	assert.False(t, OrderFilter{Status: OrderStatusPending}.Matches(order))
	assert.False(t, OrderFilter{Status: OrderStatusConfirmed, PaymentStatus: PaymentStatusPending}.Matches(order))
}
