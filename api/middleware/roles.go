package middleware

import (
	"net/http"

	"github.com/dalgayunus/iTicket/api/responses"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/logger"
)

// Capability names an action a route needs, decoupled from role strings.
type Capability string

const (
	CapManageEvents     Capability = "manage_events"
	CapManagePromos     Capability = "manage_promos"
	CapManageCategories Capability = "manage_categories"
	CapPlaceOrders      Capability = "place_orders"
	CapManageUsers      Capability = "manage_users"
)

var capabilityRoles = map[Capability][]enums.UserRole{
	CapManageEvents:     {enums.UserRoleOrganizer, enums.UserRoleAdmin},
	CapManagePromos:     {enums.UserRoleOrganizer, enums.UserRoleAdmin},
	CapManageCategories: {enums.UserRoleAdmin},
	CapPlaceOrders:      {enums.UserRoleCustomer, enums.UserRoleOrganizer, enums.UserRoleAdmin},
	CapManageUsers:      {enums.UserRoleAdmin},
}

// RoleHasCapability reports whether the role is granted the capability.
func RoleHasCapability(role enums.UserRole, cap Capability) bool {
	for _, allowed := range capabilityRoles[cap] {
		if allowed == role {
			return true
		}
	}
	return false
}

// RequireCapability rejects requests whose actor role lacks the capability.
func RequireCapability(cap Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if !RoleHasCapability(role, cap) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "capability required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
