package attachment

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	attachmentDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/attachment"
)

// Categories an SPM attachment can be filed under.
const (
	CategoryDokumenSPM = "dokumen_spm"
	CategoryKwitansi   = "kwitansi"
	CategoryLainnya    = "lainnya"
)

var Categories = []string{CategoryDokumenSPM, CategoryKwitansi, CategoryLainnya}

// AllowedContentTypes are the upload formats accepted.
var AllowedContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

type Attachment struct {
	ID           int64     `json:"id"`
	DocumentType string    `json:"document_type"`
	DocumentID   int64     `json:"document_id"`
	Category     string    `json:"category"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedBy   int64     `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func FromDataModel(m *attachmentDatamodel.Attachment) *Attachment {
	return &Attachment{
		ID:           m.ID,
		DocumentType: m.DocumentType,
		DocumentID:   m.DocumentID,
		Category:     m.Category,
		FileName:     m.FileName,
		ContentType:  m.ContentType,
		SizeBytes:    m.SizeBytes,
		UploadedBy:   m.UploadedBy,
		CreatedAt:    m.CreatedAt,
	}
}

// StorageKey places a blob under {owner}/{document}/. The stored name is prefixed with a
// random id so re-uploading the same file name never overwrites.
func StorageKey(ownerID, documentID int64, fileName string) string {
	return fmt.Sprintf("%d/%d/%s_%s", ownerID, documentID, uuid.NewString(), SanitizeFileName(fileName))
}

// SanitizeFileName keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}
