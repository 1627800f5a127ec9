package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalgayunus/iTicket/pkg/enums"
)

func TestRoleHasCapability(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role enums.UserRole
		cap  Capability
		want bool
	}{
		{enums.UserRoleCustomer, CapPlaceOrders, true},
		{enums.UserRoleCustomer, CapManageEvents, false},
		{enums.UserRoleOrganizer, CapManageEvents, true},
		{enums.UserRoleOrganizer, CapManagePromos, true},
		{enums.UserRoleOrganizer, CapManageCategories, false},
		{enums.UserRoleAdmin, CapManageCategories, true},
		{enums.UserRoleAdmin, CapManageUsers, true},
		{enums.UserRole("ghost"), CapPlaceOrders, false},
	}
	for _, tc := range cases {
		if got := RoleHasCapability(tc.role, tc.cap); got != tc.want {
			t.Errorf("RoleHasCapability(%q, %q) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestRequireCapabilityBlocksMissingRole(t *testing.T) {
	t.Parallel()

	var reached bool
	handler := RequireCapability(CapManageEvents, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.UserRoleCustomer)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if reached {
		t.Fatal("handler should not run for customer role")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireCapabilityPassesGrantedRole(t *testing.T) {
	t.Parallel()

	var reached bool
	handler := RequireCapability(CapManageEvents, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.UserRoleOrganizer)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !reached {
		t.Fatal("handler should run for organizer role")
	}
}
