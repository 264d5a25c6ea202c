package authz

import (
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
)

// Action names a guarded operation in the order pipeline.
type Action string

const (
	ActionCreateOrder        Action = "order.create"
	ActionAcceptOrder        Action = "order.accept"
	ActionCancelOrder        Action = "order.cancel"
	ActionForceTransition    Action = "order.force_transition"
	ActionViewOrder          Action = "order.view"
	ActionUpdateDelivery     Action = "delivery.update_status"
	ActionViewDelivery       Action = "delivery.view"
	ActionHeartbeat          Action = "driver.heartbeat"
	ActionTriggerAssignment  Action = "assignment.trigger"
	ActionViewNotifications  Action = "notification.view"
	ActionManagePreferences  Action = "notification.manage_preferences"
	ActionViewAuditTrail     Action = "audit.view"
	ActionCloseOutCommission Action = "commission.close_out"
)

// capabilities is the role/action grant table. A missing entry means denied;
// there is no implicit fallthrough between roles.
var capabilities = map[enums.ActorRole]map[Action]bool{
	enums.RoleCustomer: {
		ActionCreateOrder:       true,
		ActionCancelOrder:       true,
		ActionViewOrder:         true,
		ActionViewDelivery:      true,
		ActionViewNotifications: true,
		ActionManagePreferences: true,
	},
	enums.RoleStoreOwner: {
		ActionAcceptOrder:       true,
		ActionCancelOrder:       true,
		ActionViewOrder:         true,
		ActionViewDelivery:      true,
		ActionTriggerAssignment: true,
		ActionViewNotifications: true,
		ActionManagePreferences: true,
	},
	enums.RoleDriver: {
		ActionHeartbeat:         true,
		ActionUpdateDelivery:    true,
		ActionViewDelivery:      true,
		ActionViewNotifications: true,
		ActionManagePreferences: true,
	},
	enums.RoleAdmin: {
		ActionCreateOrder:        true,
		ActionAcceptOrder:        true,
		ActionCancelOrder:        true,
		ActionForceTransition:    true,
		ActionViewOrder:          true,
		ActionUpdateDelivery:     true,
		ActionViewDelivery:       true,
		ActionTriggerAssignment:  true,
		ActionViewNotifications:  true,
		ActionManagePreferences:  true,
		ActionViewAuditTrail:     true,
		ActionCloseOutCommission: true,
	},
	enums.RoleSystem: {
		ActionCancelOrder:        true,
		ActionTriggerAssignment:  true,
		ActionCloseOutCommission: true,
	},
}

// Allowed reports whether the role may perform the action.
func Allowed(role enums.ActorRole, action Action) bool {
	grants, ok := capabilities[role]
	if !ok {
		return false
	}
	return grants[action]
}

// Require returns a FORBIDDEN error when the role lacks the action.
func Require(role enums.ActorRole, action Action) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	if !Allowed(role, action) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this operation")
	}
	return nil
}
