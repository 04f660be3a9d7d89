package systemconfig

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

type ServiceAPI interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, actorID int64, values map[string]string) (map[string]string, error)
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

type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.Service.GetAll(r.Context())
	if err != nil {
		h.Logger.Error("GetSettings: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SettingsResponse{Settings: values})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("UpdateSettings: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateSettingsRequest
	if err := h.DecodeJSON(r, &req); err != nil || len(req.Settings) == 0 {
		h.WriteError(w, http.StatusBadRequest, "settings are required")
		return
	}

	values, err := h.Service.Update(r.Context(), user.ID, req.Settings)
	if err != nil {
		h.Logger.Error("UpdateSettings: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SettingsResponse{Settings: values})
}
