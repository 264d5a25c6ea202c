package authz

import (
	"testing"

	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		role   enums.ActorRole
		action Action
		want   bool
	}{
		{enums.RoleCustomer, ActionCreateOrder, true},
		{enums.RoleCustomer, ActionForceTransition, false},
		{enums.RoleCustomer, ActionUpdateDelivery, false},
		{enums.RoleStoreOwner, ActionAcceptOrder, true},
		{enums.RoleStoreOwner, ActionTriggerAssignment, true},
		{enums.RoleStoreOwner, ActionHeartbeat, false},
		{enums.RoleDriver, ActionUpdateDelivery, true},
		{enums.RoleDriver, ActionCreateOrder, false},
		{enums.RoleAdmin, ActionForceTransition, true},
		{enums.RoleAdmin, ActionViewAuditTrail, true},
		{enums.RoleSystem, ActionTriggerAssignment, true},
		{enums.RoleSystem, ActionViewAuditTrail, false},
	}

	for _, tc := range cases {
		if got := Allowed(tc.role, tc.action); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestRequireUnknownRole(t *testing.T) {
	err := Require(enums.ActorRole("intruder"), ActionViewOrder)
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireForbidden(t *testing.T) {
	err := Require(enums.RoleDriver, ActionForceTransition)
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireGranted(t *testing.T) {
	if err := Require(enums.RoleAdmin, ActionForceTransition); err != nil {
		t.Fatalf("expected admin force transition to be granted: %v", err)
	}
}
