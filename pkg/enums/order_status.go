package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order. Two lanes share the
// table: the courier-delivery lane (created → … → delivered) and a simplified
// fulfillment lane (pending → … → delivered) for orders shipped without a
// driver.
type OrderStatus string

const (
	OrderStatusCreated          OrderStatus = "created"
	OrderStatusPaymentPending   OrderStatus = "payment_pending"
	OrderStatusPaymentSuccess   OrderStatus = "payment_success"
	OrderStatusMerchantAccepted OrderStatus = "merchant_accepted"
	OrderStatusWaitingForDriver OrderStatus = "waiting_for_driver"
	OrderStatusDriverAssigned   OrderStatus = "driver_assigned"
	OrderStatusPickedUp         OrderStatus = "picked_up"
	OrderStatusOutForDelivery   OrderStatus = "out_for_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusFailed           OrderStatus = "failed"

	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaymentPending,
	OrderStatusPaymentSuccess,
	OrderStatusMerchantAccepted,
	OrderStatusWaitingForDriver,
	OrderStatusDriverAssigned,
	OrderStatusPickedUp,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusFailed,
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
