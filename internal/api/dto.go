package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
)

// Money accepts a JSON number or a numeric string. Storefront clients have
// historically sent prices both ways.
type Money float64

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*m = 0
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*m = Money(v)
	return nil
}

// Quantity accepts a JSON number (possibly fractional) or a numeric string
// and floors it.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var m Money
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	*q = Quantity(int(m))
	return nil
}

type orderItemRequest struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	ProductSKU  string   `json:"product_sku"`
	Quantity    Quantity `json:"quantity"`
	UnitPrice   Money    `json:"unit_price"`
}

type createOrderRequest struct {
	Customer      models.Customer    `json:"customer"`
	Address       models.Address     `json:"address"`
	Items         []orderItemRequest `json:"items"`
	Subtotal      Money              `json:"subtotal"`
	ShippingFee   Money              `json:"shipping_fee"`
	Total         Money              `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	Notes         string             `json:"notes"`
}

func (r *createOrderRequest) toServiceRequest() *service.CreateOrderRequest {
	items := make([]models.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    int(item.Quantity),
			UnitPrice:   float64(item.UnitPrice),
		})
	}

	method := r.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCheckout
	}

	return &service.CreateOrderRequest{
		Customer:      r.Customer,
		Address:       r.Address,
		Items:         items,
		Subtotal:      float64(r.Subtotal),
		ShippingFee:   float64(r.ShippingFee),
		Total:         float64(r.Total),
		PaymentMethod: method,
		Notes:         r.Notes,
	}
}
