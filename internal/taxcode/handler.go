package taxcode

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

type ServiceAPI interface {
	List(ctx context.Context, includeInactive bool) ([]*TaxCode, error)
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

func (h *Handler) GetTaxCodes(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	codes, err := h.Service.List(r.Context(), includeInactive)
	if err != nil {
		h.Logger.Error("GetTaxCodes: failed to get tax codes", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TaxCodesResponse{TaxCodes: codes})
}
