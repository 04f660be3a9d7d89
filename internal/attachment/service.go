package attachment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/core/common/validation"
	attachmentDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/attachment"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
)

type RepositoryAPI interface {
	Create(ctx context.Context, a *attachmentDatamodel.Attachment) error
	GetByID(ctx context.Context, id int64) (*attachmentDatamodel.Attachment, error)
	ListByDocument(ctx context.Context, documentType string, documentID int64) ([]*attachmentDatamodel.Attachment, error)
	Delete(ctx context.Context, id int64) error
	CountByCategory(ctx context.Context, documentType string, documentID int64, category string) (int64, error)
}

// DocumentSource returns the SPM when user may see it.
type DocumentSource interface {
	Get(ctx context.Context, id int64, user *auth.User) (*spm.SPM, error)
}

// DocumentSourceFunc adapts a plain function to DocumentSource.
type DocumentSourceFunc func(ctx context.Context, id int64, user *auth.User) (*spm.SPM, error)

func (f DocumentSourceFunc) Get(ctx context.Context, id int64, user *auth.User) (*spm.SPM, error) {
	return f(ctx, id, user)
}

type Signer interface {
	Sign(attachmentID, userID int64) (SignedURL, error)
	Parse(token string) (*DownloadClaims, error)
}

// UploadInput describes one file being attached to an SPM.
type UploadInput struct {
	SPMID       int64
	Category    string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service struct {
	repo        RepositoryAPI
	store       BlobStore
	signer      Signer
	docs        DocumentSource
	maxFileSize int64
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, store BlobStore, signer Signer, docs DocumentSource, maxFileSize int64, logger *slog.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &Service{
		repo:        repo,
		store:       store,
		signer:      signer,
		docs:        docs,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

var _ spm.AttachmentChecker = (*Service)(nil)

func (s *Service) HasCategory(ctx context.Context, documentType string, documentID int64, category string) (bool, error) {
	n, err := s.repo.CountByCategory(ctx, documentType, documentID, category)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) validate(in UploadInput) *internal.AppError {
	v := validation.NewValidator()
	v.Field("category", in.Category).Required().OneOf(internal.ErrCodeValidationFailed, Categories...)
	v.Field("file_name", strings.TrimSpace(in.FileName)).Required().MaxLength(255)
	v.Field("content_type", in.ContentType).Required().OneOf(internal.ErrCodeValidationFailed, AllowedContentTypes...)
	v.Field("file", in.Size).Custom(func(interface{}) *internal.AppError {
		if in.Size <= 0 {
			return internal.NewValidationError("file is empty", internal.ErrCodeValidationFailed)
		}
		if in.Size > s.maxFileSize {
			return internal.NewValidationError("file exceeds the maximum upload size", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	return v.Validate()
}

// Upload stores the file and records it against the SPM. Only the SPM's creator may
// attach, and only while the SPM is still editable.
func (s *Service) Upload(ctx context.Context, user *auth.User, in UploadInput) (*Attachment, error) {
	if appErr := s.validate(in); appErr != nil {
		return nil, appErr
	}

	doc, err := s.editableDocument(ctx, user, in.SPMID)
	if err != nil {
		return nil, err
	}

	key := StorageKey(doc.CreatedBy, doc.ID, in.FileName)
	written, err := s.store.Put(ctx, key, io.LimitReader(in.Body, s.maxFileSize+1))
	if err != nil {
		s.logger.Error("failed to store attachment", "error", err, "spm_id", doc.ID, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to store file", err)
	}
	if written > s.maxFileSize {
		s.removeBlob(ctx, key)
		return nil, internal.NewValidationFieldError("file", "file exceeds the maximum upload size", internal.ErrCodeValidationFailed)
	}

	row := &attachmentDatamodel.Attachment{
		DocumentType: spm.DocumentType,
		DocumentID:   doc.ID,
		Category:     in.Category,
		FileName:     SanitizeFileName(in.FileName),
		StorageKey:   key,
		ContentType:  in.ContentType,
		SizeBytes:    written,
		UploadedBy:   user.ID,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.removeBlob(ctx, key)
		s.logger.Error("failed to record attachment", "error", err, "spm_id", doc.ID)
		return nil, internal.NewPersistenceError("create attachment", err)
	}

	s.logger.Info("attachment uploaded",
		"attachment_id", row.ID,
		"spm_id", doc.ID,
		"category", row.Category,
		"size_bytes", written,
		"user_id", user.ID)
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, user *auth.User, spmID int64) ([]*Attachment, error) {
	if _, err := s.docs.Get(ctx, spmID, user); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDocument(ctx, spm.DocumentType, spmID)
	if err != nil {
		return nil, internal.NewPersistenceError("list attachments", err)
	}
	out := make([]*Attachment, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, user *auth.User, spmID, attachmentID int64) error {
	row, err := s.load(ctx, attachmentID)
	if err != nil {
		return err
	}
	if row.DocumentType != spm.DocumentType || row.DocumentID != spmID {
		return internal.ErrAttachmentNotFound
	}
	if _, err := s.editableDocument(ctx, user, spmID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, row.ID); err != nil {
		return internal.NewPersistenceError("delete attachment", err)
	}
	s.removeBlob(ctx, row.StorageKey)

	s.logger.Info("attachment deleted", "attachment_id", row.ID, "spm_id", spmID, "user_id", user.ID)
	return nil
}

// SignedURL issues a short-lived download link for anyone allowed to view the SPM.
func (s *Service) SignedURL(ctx context.Context, user *auth.User, attachmentID int64) (SignedURL, error) {
	row, err := s.load(ctx, attachmentID)
	if err != nil {
		return SignedURL{}, err
	}
	if _, err := s.docs.Get(ctx, row.DocumentID, user); err != nil {
		return SignedURL{}, err
	}
	signed, err := s.signer.Sign(row.ID, user.ID)
	if err != nil {
		return SignedURL{}, internal.NewInternalError("failed to sign download url", err)
	}
	return signed, nil
}

// Open resolves a download token to the attachment and its content. The caller closes
// the reader.
func (s *Service) Open(ctx context.Context, token string) (*Attachment, io.ReadCloser, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	row, err := s.load(ctx, claims.AttachmentID)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Open(ctx, row.StorageKey)
	if err != nil {
		s.logger.Error("attachment blob missing", "error", err, "attachment_id", row.ID, "storage_key", row.StorageKey)
		return nil, nil, internal.NewInternalError("failed to open file", err)
	}
	return FromDataModel(row), body, nil
}

func (s *Service) editableDocument(ctx context.Context, user *auth.User, spmID int64) (*spm.SPM, error) {
	doc, err := s.docs.Get(ctx, spmID, user)
	if err != nil {
		return nil, err
	}
	if doc.CreatedBy != user.ID {
		return nil, internal.ErrUnauthorizedAccess
	}
	if !doc.Status.Editable() {
		return nil, internal.ErrCannotModifySPM
	}
	return doc, nil
}

func (s *Service) load(ctx context.Context, id int64) (*attachmentDatamodel.Attachment, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrAttachmentNotFound) {
			return nil, internal.ErrAttachmentNotFound
		}
		return nil, internal.NewPersistenceError("load attachment", err)
	}
	return row, nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove attachment blob", "error", err, "storage_key", key)
	}
}
