package stepup

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

type ServiceAPI interface {
	Request(ctx context.Context, scope Scope, purpose Purpose) (time.Time, error)
}

// IssuePINRequest optionally binds the PIN to one SPM. Without it the PIN works for the
// next final approval the caller makes.
type IssuePINRequest struct {
	SPMID *int64 `json:"spm_id,omitempty"`
}

type IssuePINResponse struct {
	Purpose   Purpose   `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// IssueApprovalPIN sends a fresh approval PIN to the caller. The PIN itself never
// appears in the response.
func (h *Handler) IssueApprovalPIN(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("IssueApprovalPIN: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req IssuePINRequest
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &req); err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	scope := Scope{UserID: user.ID}
	if req.SPMID != nil {
		if *req.SPMID <= 0 {
			h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
			return
		}
		scope.DocumentType = "spm"
		scope.DocumentID = req.SPMID
	}

	expiresAt, err := h.Service.Request(r.Context(), scope, PurposeApprovalPIN)
	if err != nil {
		h.Logger.Error("IssueApprovalPIN: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, IssuePINResponse{Purpose: PurposeApprovalPIN, ExpiresAt: expiresAt})
}
