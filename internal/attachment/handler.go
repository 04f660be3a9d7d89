package attachment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
)

type ServiceAPI interface {
	Upload(ctx context.Context, user *auth.User, in UploadInput) (*Attachment, error)
	List(ctx context.Context, user *auth.User, spmID int64) ([]*Attachment, error)
	Delete(ctx context.Context, user *auth.User, spmID, attachmentID int64) error
	SignedURL(ctx context.Context, user *auth.User, attachmentID int64) (SignedURL, error)
	Open(ctx context.Context, token string) (*Attachment, io.ReadCloser, error)
}

type Handler struct {
	*transport.BaseHandler
	Service     ServiceAPI
	MaxFileSize int64
}

func NewHandler(service ServiceAPI, maxFileSize int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		MaxFileSize: maxFileSize,
	}
}

func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("UploadAttachment: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	spmID, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	// headroom for the other multipart fields
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(h.MaxFileSize); err != nil {
		h.Logger.Error("UploadAttachment: invalid multipart body", "error", err, "spm_id", spmID)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart body or file too large")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	contentType, err := detectContentType(file, header)
	if err != nil {
		h.Logger.Error("UploadAttachment: failed to read file", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	att, err := h.Service.Upload(r.Context(), user, UploadInput{
		SPMID:       spmID,
		Category:    r.FormValue("category"),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.Logger.Error("UploadAttachment: service error", "error", err, "spm_id", spmID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, att)
}

func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("ListAttachments: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	spmID, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}

	items, err := h.Service.List(r.Context(), user, spmID)
	if err != nil {
		h.Logger.Error("ListAttachments: service error", "error", err, "spm_id", spmID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"attachments": items})
}

func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("DeleteAttachment: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	spmID, ok := h.ParseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid SPM ID")
		return
	}
	attachmentID, ok := h.ParseIDParam(r, "attachmentId")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid attachment ID")
		return
	}

	if err := h.Service.Delete(r.Context(), user, spmID, attachmentID); err != nil {
		h.Logger.Error("DeleteAttachment: service error", "error", err, "attachment_id", attachmentID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("GetDownloadURL: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	attachmentID, ok := h.ParseIDParam(r, "attachmentId")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid attachment ID")
		return
	}

	signed, err := h.Service.SignedURL(r.Context(), user, attachmentID)
	if err != nil {
		h.Logger.Error("GetDownloadURL: service error", "error", err, "attachment_id", attachmentID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, signed)
}

// ServeFile streams a blob for a signed token. It sits outside bearer auth; the token is
// the credential.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "token is required")
		return
	}

	att, body, err := h.Service.Open(r.Context(), token)
	if err != nil {
		h.Logger.Warn("ServeFile: rejected download", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Error("ServeFile: stream interrupted", "error", err, "attachment_id", att.ID)
	}
}

// detectContentType trusts the part header unless it is missing or generic, then sniffs.
func detectContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	ct := header.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}
