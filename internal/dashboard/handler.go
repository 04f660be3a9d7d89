package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

type ServiceAPI interface {
	Summary(ctx context.Context, user *auth.User) (*Summary, error)
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

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetSummary: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.Service.Summary(r.Context(), user)
	if err != nil {
		h.Logger.Error("GetSummary: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}
