package orders

import (
	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// allowedTransitions is the single source of truth for the order lifecycle.
// Two lanes share the table: the courier lane (created → … → delivered) and
// the simplified fulfillment lane (pending → … → delivered) for orders
// shipped without a driver. Terminal states have no outgoing edges.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusPaymentPending: {
		enums.OrderStatusPaymentSuccess,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusPaymentSuccess: {
		enums.OrderStatusMerchantAccepted,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusMerchantAccepted: {
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusWaitingForDriver,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusWaitingForDriver: {
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusDriverAssigned: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusFailed,
	},

	enums.OrderStatusPending: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
		enums.OrderStatusFailed,
	},
}

// transitionRoles gates who may cause each target status. Automated pipeline
// steps run as the system actor; admins may cause anything.
var transitionRoles = map[enums.OrderStatus][]enums.ActorRole{
	enums.OrderStatusPaymentPending:   {enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusPaymentSuccess:   {enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusMerchantAccepted: {enums.RoleStoreOwner, enums.RoleAdmin},
	enums.OrderStatusWaitingForDriver: {enums.RoleStoreOwner, enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusDriverAssigned:   {enums.RoleStoreOwner, enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusPickedUp:         {enums.RoleDriver, enums.RoleAdmin},
	enums.OrderStatusOutForDelivery:   {enums.RoleDriver, enums.RoleAdmin},
	enums.OrderStatusDelivered:        {enums.RoleDriver, enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusCancelled:        {enums.RoleCustomer, enums.RoleStoreOwner, enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusFailed:           {enums.RoleDriver, enums.RoleSystem, enums.RoleAdmin},

	enums.OrderStatusConfirmed:  {enums.RoleStoreOwner, enums.RoleSystem, enums.RoleAdmin},
	enums.OrderStatusProcessing: {enums.RoleStoreOwner, enums.RoleAdmin},
	enums.OrderStatusShipped:    {enums.RoleStoreOwner, enums.RoleAdmin},
}

// CanTransition reports whether from → to appears in the lifecycle table.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from the given status.
func AllowedTargets(from enums.OrderStatus) []enums.OrderStatus {
	targets := allowedTransitions[from]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// RoleMayCause reports whether the role is permitted to drive an order into
// the target status.
func RoleMayCause(target enums.OrderStatus, role enums.ActorRole) bool {
	for _, candidate := range transitionRoles[target] {
		if candidate == role {
			return true
		}
	}
	return false
}
