package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(internal.ContextUserKey).(*User)
	return u, ok
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, internal.ContextUserKey, u)
}

// DocumentAttributes are the ownership facts an access decision needs.
type DocumentAttributes struct {
	OwnerID int64
	OPDID   int64
}

// DocumentPolicy decides who may read an SPM or its SP2D. Verifiers, kuasa BUD and
// admins see every document; a bendahara sees what they created plus their OPD's.
type DocumentPolicy struct{}

var reviewerRoles = []role.Role{
	role.Resepsionis, role.PBMD, role.Akuntansi, role.Perbendaharaan, role.KepalaBKAD, role.KuasaBUD,
}

func (p *DocumentPolicy) CanView(u *User, doc DocumentAttributes) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() || u.HasAnyRole(reviewerRoles...) {
		return true
	}
	if doc.OwnerID == u.ID {
		return true
	}
	if opd := u.OPDID(); opd != nil && *opd == doc.OPDID {
		return true
	}
	return false
}

// CanModify is limited to the creator and admins.
func (p *DocumentPolicy) CanModify(u *User, doc DocumentAttributes) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || doc.OwnerID == u.ID
}

// ScopeFilter returns the owner/OPD restriction to apply to list queries. Both nil
// means the user may list everything.
func (p *DocumentPolicy) ScopeFilter(u *User) (ownerID *int64, opdID *int64) {
	if u.IsAdmin() || u.HasAnyRole(reviewerRoles...) {
		return nil, nil
	}
	if opd := u.OPDID(); opd != nil {
		return nil, opd
	}
	id := u.ID
	return &id, nil
}

// RequireABAC runs check against the authenticated user before next.
func RequireABAC(policy *DocumentPolicy, check func(p *DocumentPolicy, u *User, r *http.Request) error) func(next http.Handler) http.Handler {
	h := transport.NewBaseHandler(logger.LoggerWrapper())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok || u == nil {
				h.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := check(policy, u, r); err != nil {
				var appErr *internal.AppError
				if !errors.As(err, &appErr) {
					logger.From(r.Context()).Error("document policy check failed", "error", err, "path", r.URL.Path)
				}
				h.HandleServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCanViewSPM guards nested SPM routes (attachments) that do not load the SPM
// through the service. The SPM id is read from the chi {id} parameter.
func RequireCanViewSPM(db *sqlx.DB, policy *DocumentPolicy, idParam func(r *http.Request) (int64, bool)) func(next http.Handler) http.Handler {
	return RequireABAC(policy, func(p *DocumentPolicy, u *User, r *http.Request) error {
		id, ok := idParam(r)
		if !ok {
			return internal.NewValidationError("invalid SPM ID", internal.ErrCodeValidationFailed)
		}

		var doc struct {
			OwnerID int64 `db:"created_by"`
			OPDID   int64 `db:"opd_id"`
		}
		err := db.GetContext(r.Context(), &doc, db.Rebind("SELECT created_by, opd_id FROM spm WHERE id = ?"), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return internal.ErrSPMNotFound
			}
			return err
		}
		if !p.CanView(u, DocumentAttributes{OwnerID: doc.OwnerID, OPDID: doc.OPDID}) {
			return internal.ErrUnauthorizedAccess
		}
		return nil
	})
}
