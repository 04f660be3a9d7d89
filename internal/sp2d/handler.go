package sp2d

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
	Create(ctx context.Context, actorID int64, dto CreateSP2DDTO) (*SP2D, error)
	Get(ctx context.Context, id int64, user *auth.User) (*SP2D, error)
	List(ctx context.Context, user *auth.User, filter ListFilter) (*ListResult, error)
	RequestOTP(ctx context.Context, id, actorID int64) (time.Time, error)
	Release(ctx context.Context, id, actorID int64, dto ReleaseDTO) (*SP2D, error)
	SendToBank(ctx context.Context, id, actorID int64) (*SP2D, error)
	BankCallback(ctx context.Context, dto BankCallbackDTO) (*SP2D, error)
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

func (h *Handler) CreateSP2D(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("CreateSP2D: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateSP2DDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("CreateSP2D: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.Create(r.Context(), user.ID, dto)
	if err != nil {
		h.Logger.Error("CreateSP2D: service error", "error", err, "spm_id", dto.SPMID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) ListSP2D(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("ListSP2D: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := h.Pagination(r)
	result, err := h.Service.List(r.Context(), user, ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.Logger.Error("ListSP2D: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetSP2D(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetSP2D: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SP2D ID")
		return
	}

	doc, err := h.Service.Get(r.Context(), id, user)
	if err != nil {
		h.Logger.Error("GetSP2D: service error", "error", err, "sp2d_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("RequestOTP: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SP2D ID")
		return
	}

	expiresAt, err := h.Service.RequestOTP(r.Context(), id, user.ID)
	if err != nil {
		h.Logger.Error("RequestOTP: service error", "error", err, "sp2d_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"sp2d_id":    id,
		"expires_at": expiresAt,
	})
}

func (h *Handler) ReleaseSP2D(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("ReleaseSP2D: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SP2D ID")
		return
	}

	var dto ReleaseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("ReleaseSP2D: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.Release(r.Context(), id, user.ID, dto)
	if err != nil {
		h.Logger.Error("ReleaseSP2D: service error", "error", err, "sp2d_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ReleaseSP2D: SP2D issued", "sp2d_id", id, "user_id", user.ID, "otp_test_mode", doc.OTPTestMode)
	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) SendToBank(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("SendToBank: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SP2D ID")
		return
	}

	doc, err := h.Service.SendToBank(r.Context(), id, user.ID)
	if err != nil {
		h.Logger.Error("SendToBank: service error", "error", err, "sp2d_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, doc)
}
