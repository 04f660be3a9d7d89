package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
)

var errInsufficientRole = internal.NewForbiddenError("your role cannot perform this action", internal.ErrCodeRoleRequired)

// RBACAuthorization gates routes by role, before any document is loaded. Stage and
// ownership checks happen later in the services.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// Check lets the request through when the user holds at least one of roles.
func (ra *RBACAuthorization) Check(next http.HandlerFunc, roles ...role.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user == nil {
			ra.Logger.Warn("authorization check failed: user not found in context")
			ra.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if !user.HasAnyRole(roles...) {
			ra.Logger.WarnContext(r.Context(), "access denied: missing role",
				"user_id", user.ID,
				"path", r.URL.Path,
				"required_roles", roles,
				"user_roles", user.Roles.Names())
			metrics.RecordRejection("route", "missing_role")
			ra.HandleServiceError(w, errInsufficientRole)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) RequireRoles(roles ...role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, roles...)
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRoles(role.Administrator, role.SuperAdmin)
}
