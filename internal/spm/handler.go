package spm

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

type ServiceAPI interface {
	Create(ctx context.Context, actorID int64, dto CreateSPMDTO) (*SPM, error)
	Update(ctx context.Context, id, actorID int64, dto UpdateSPMDTO) (*SPM, error)
	Get(ctx context.Context, id int64, user *auth.User) (*SPM, error)
	List(ctx context.Context, user *auth.User, filter ListFilter) (*ListResult, error)
	Delete(ctx context.Context, id, actorID int64) error
	Submit(ctx context.Context, id, actorID int64) (*SPM, error)
	Verify(ctx context.Context, id, actorID int64, dto VerifyDTO) (*SPM, error)
	History(ctx context.Context, id int64, user *auth.User) ([]StageEvent, error)
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

func (h *Handler) CreateSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("CreateSPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateSPMDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("CreateSPM: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.Create(r.Context(), user.ID, dto)
	if err != nil {
		h.Logger.Error("CreateSPM: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) ListSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("ListSPM: user not found in context")
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
		h.Logger.Error("ListSPM: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetSPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	doc, err := h.Service.Get(r.Context(), id, user)
	if err != nil {
		h.Logger.Error("GetSPM: service error", "error", err, "spm_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) UpdateSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("UpdateSPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	var dto UpdateSPMDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("UpdateSPM: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.Update(r.Context(), id, user.ID, dto)
	if err != nil {
		h.Logger.Error("UpdateSPM: service error", "error", err, "spm_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) DeleteSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("DeleteSPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	if err := h.Service.Delete(r.Context(), id, user.ID); err != nil {
		h.Logger.Error("DeleteSPM: service error", "error", err, "spm_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitSPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("SubmitSPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	doc, err := h.Service.Submit(r.Context(), id, user.ID)
	if err != nil {
		h.Logger.Error("SubmitSPM: service error", "error", err, "spm_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("SubmitSPM: SPM submitted", "spm_id", id, "user_id", user.ID)
	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) VerifySPM(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("VerifySPM: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	var dto VerifyDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.Logger.Error("VerifySPM: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.Verify(r.Context(), id, user.ID, dto)
	if err != nil {
		h.Logger.Error("VerifySPM: service error",
			"error", err,
			"spm_id", id,
			"user_id", user.ID,
			"acting_role", dto.ActingRole,
			"action", dto.Action)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("VerifySPM: decision recorded",
		"spm_id", id,
		"user_id", user.ID,
		"action", dto.Action,
		"status", doc.Status)
	h.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetHistory: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	events, err := h.Service.History(r.Context(), id, user)
	if err != nil {
		h.Logger.Error("GetHistory: service error", "error", err, "spm_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"spm_id": id,
		"events": events,
	})
}
