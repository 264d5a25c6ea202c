package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateDelivery OutboxAggregateType = "delivery"
	AggregatePayment  OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateDelivery,
	AggregatePayment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderStateChanged      OutboxEventType = "order_state_changed"
	EventOrderPaid              OutboxEventType = "order_paid"
	EventOrderCancelled         OutboxEventType = "order_cancelled"
	EventOrderDelivered         OutboxEventType = "order_delivered"
	EventPaymentVerified        OutboxEventType = "payment_verified"
	EventPaymentFailed          OutboxEventType = "payment_failed"
	EventDriverAssigned         OutboxEventType = "driver_assigned"
	EventDriverUnavailable      OutboxEventType = "driver_unavailable"
	EventDeliveryStateChanged   OutboxEventType = "delivery_state_changed"
	EventNotificationRequested  OutboxEventType = "notification_requested"
	EventAdminOverrideRecorded  OutboxEventType = "admin_override_recorded"
	EventCommissionClosedOut    OutboxEventType = "commission_closed_out"
	EventInventoryReleased      OutboxEventType = "inventory_released"
	EventAssignmentRetryDrained OutboxEventType = "assignment_retry_drained"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentVerified,
	EventPaymentFailed,
	EventDriverAssigned,
	EventDriverUnavailable,
	EventDeliveryStateChanged,
	EventNotificationRequested,
	EventAdminOverrideRecorded,
	EventCommissionClosedOut,
	EventInventoryReleased,
	EventAssignmentRetryDrained,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
