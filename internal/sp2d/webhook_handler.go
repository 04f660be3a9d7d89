package sp2d

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/spm-sp2d/internal/transport"
)

// CallbackSecretHeader carries the shared secret the bank integration signs its
// callbacks with.
const CallbackSecretHeader = "X-Callback-Secret"

type WebhookHandler struct {
	*transport.BaseHandler
	service ServiceAPI
	secret  string
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		secret:      secret,
		logger:      logger,
	}
}

type BankCallbackResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SP2DState Status `json:"sp2d_status"`
}

func (h *WebhookHandler) HandleBankCallback(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("bank callback rejected: bad secret", "remote_addr", r.RemoteAddr)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req BankCallbackDTO
	if err := h.DecodeJSON(r, &req); err != nil {
		h.logger.Error("invalid bank callback request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.logger.Info("received bank callback",
		"nomor_sp2d", req.NomorSP2D,
		"status", req.Status,
		"reference", req.Reference)

	doc, err := h.service.BankCallback(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to process bank callback",
			"error", err,
			"nomor_sp2d", req.NomorSP2D,
			"status", req.Status)
		h.HandleServiceError(w, err)
		return
	}

	h.logger.Info("bank callback processed",
		"nomor_sp2d", req.NomorSP2D,
		"sp2d_id", doc.ID,
		"sp2d_status", doc.Status)

	h.WriteJSON(w, http.StatusOK, BankCallbackResponse{
		Status:    "success",
		Message:   "callback processed successfully",
		SP2DState: doc.Status,
	})
}

// authorized fails closed when no secret is configured.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	got := r.Header.Get(CallbackSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
