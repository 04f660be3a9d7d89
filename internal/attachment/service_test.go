package attachment_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	attachmentPostgres "github.com/frahmantamala/spm-sp2d/internal/attachment/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database/dbtest"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	ownerID    int64 = 1
	reviewerID int64 = 2
	strangerID int64 = 3
)

// fakeDocs lets the owner and the reviewer see every document.
type fakeDocs struct {
	docs map[int64]*spm.SPM
}

func (f *fakeDocs) Get(_ context.Context, id int64, user *auth.User) (*spm.SPM, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, internal.ErrSPMNotFound
	}
	if user.ID != doc.CreatedBy && user.ID != reviewerID {
		return nil, internal.ErrUnauthorizedAccess
	}
	return doc, nil
}

var _ = ginkgo.Describe("Attachment Service", func() {
	var (
		db      *gorm.DB
		root    string
		store   *attachment.LocalStore
		signer  *attachment.URLSigner
		docs    *fakeDocs
		service *attachment.Service
		ctx     context.Context
		owner   *auth.User
	)

	pdf := []byte("%PDF-1.4 surat perintah membayar")

	upload := func(user *auth.User, spmID int64, category string) (*attachment.Attachment, error) {
		return service.Upload(ctx, user, attachment.UploadInput{
			SPMID:       spmID,
			Category:    category,
			FileName:    "spm scan.pdf",
			ContentType: "application/pdf",
			Size:        int64(len(pdf)),
			Body:        bytes.NewReader(pdf),
		})
	}

	storedFiles := func() []string {
		var files []string
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		return files
	}

	ginkgo.BeforeEach(func() {
		var err error
		db, err = dbtest.Open()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		root = ginkgo.GinkgoT().TempDir()
		store, err = attachment.NewLocalStore(root)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		signer = attachment.NewURLSigner("download-secret", 5*time.Minute, "https://spm.example.go.id")
		docs = &fakeDocs{docs: map[int64]*spm.SPM{
			100: {ID: 100, CreatedBy: ownerID, OPDID: 10, Status: spm.StatusDraft},
			200: {ID: 200, CreatedBy: ownerID, OPDID: 10, Status: spm.StatusPBMDVerifikasi},
			300: {ID: 300, CreatedBy: ownerID, OPDID: 10, Status: spm.StatusPerluRevisi},
		}}
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = attachment.NewService(attachmentPostgres.NewAttachmentRepository(db), store, signer, docs, 1024, slogger)
		ctx = context.Background()
		owner = &auth.User{ID: ownerID}
	})

	ginkgo.AfterEach(func() {
		_ = dbtest.Close(db)
	})

	ginkgo.Describe("Upload", func() {
		ginkgo.It("stores the blob under the owner and document and records it", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(att.ID).NotTo(gomega.BeZero())
			gomega.Expect(att.DocumentType).To(gomega.Equal(spm.DocumentType))
			gomega.Expect(att.FileName).To(gomega.Equal("spm_scan.pdf"))
			gomega.Expect(att.SizeBytes).To(gomega.Equal(int64(len(pdf))))

			files := storedFiles()
			gomega.Expect(files).To(gomega.HaveLen(1))
			gomega.Expect(files[0]).To(gomega.ContainSubstring(filepath.Join(root, "1", "100")))
			gomega.Expect(os.ReadFile(files[0])).To(gomega.Equal(pdf))
		})

		ginkgo.It("feeds the completeness check", func() {
			has, err := service.HasCategory(ctx, spm.DocumentType, 100, spm.AttachmentDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(has).To(gomega.BeFalse())

			_, err = upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			has, err = service.HasCategory(ctx, spm.DocumentType, 100, spm.AttachmentDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(has).To(gomega.BeTrue())

			has, err = service.HasCategory(ctx, spm.DocumentType, 100, spm.AttachmentKwitansi)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(has).To(gomega.BeFalse())
		})

		ginkgo.It("accepts uploads while the SPM is back for revision", func() {
			_, err := upload(owner, 300, attachment.CategoryKwitansi)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("rejects uploads once the SPM is under review", func() {
			_, err := upload(owner, 200, attachment.CategoryDokumenSPM)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCannotModifySPM))
			gomega.Expect(storedFiles()).To(gomega.BeEmpty())
		})

		ginkgo.It("only lets the creator attach files", func() {
			_, err := upload(&auth.User{ID: reviewerID}, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("validates category and content type together", func() {
			_, err := service.Upload(ctx, owner, attachment.UploadInput{
				SPMID:       100,
				Category:    "foto",
				FileName:    "x.exe",
				ContentType: "application/x-msdownload",
				Size:        10,
				Body:        strings.NewReader("0123456789"),
			})
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			details, ok := appErr.Details.(internal.ValidationErrors)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(details.Errors).To(gomega.HaveLen(2))
		})

		ginkgo.It("rejects a body larger than the limit even when the declared size is small", func() {
			_, err := service.Upload(ctx, owner, attachment.UploadInput{
				SPMID:       100,
				Category:    attachment.CategoryLainnya,
				FileName:    "big.png",
				ContentType: "image/png",
				Size:        10,
				Body:        bytes.NewReader(make([]byte, 2048)),
			})
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			gomega.Expect(storedFiles()).To(gomega.BeEmpty())
		})

		ginkgo.It("returns not found for an unknown SPM", func() {
			_, err := upload(owner, 999, attachment.CategoryDokumenSPM)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSPMNotFound))
		})
	})

	ginkgo.Describe("List and Delete", func() {
		ginkgo.It("lists attachments for anyone who can view the SPM", func() {
			_, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			_, err = upload(owner, 100, attachment.CategoryKwitansi)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			items, err := service.List(ctx, &auth.User{ID: reviewerID}, 100)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(items).To(gomega.HaveLen(2))
			gomega.Expect(items[0].Category).To(gomega.Equal(attachment.CategoryDokumenSPM))

			_, err = service.List(ctx, &auth.User{ID: strangerID}, 100)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("removes the row and the blob", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(service.Delete(ctx, owner, 100, att.ID)).To(gomega.Succeed())
			gomega.Expect(storedFiles()).To(gomega.BeEmpty())

			items, err := service.List(ctx, owner, 100)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(items).To(gomega.BeEmpty())
		})

		ginkgo.It("treats an attachment of another SPM as not found", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			err = service.Delete(ctx, owner, 300, att.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAttachmentNotFound))
		})

		ginkgo.It("refuses deletion once the SPM is under review", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			docs.docs[100].Status = spm.StatusDiajukan

			err = service.Delete(ctx, owner, 100, att.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCannotModifySPM))
			gomega.Expect(storedFiles()).To(gomega.HaveLen(1))
		})
	})

	ginkgo.Describe("Signed downloads", func() {
		ginkgo.It("signs a URL that opens the stored file", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			signed, err := service.SignedURL(ctx, &auth.User{ID: reviewerID}, att.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(signed.URL).To(gomega.HavePrefix("https://spm.example.go.id/api/v1/files?token="))
			gomega.Expect(signed.ExpiresAt).To(gomega.BeTemporally("~", time.Now().Add(5*time.Minute), 5*time.Second))

			parsed, err := url.Parse(signed.URL)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			meta, body, err := service.Open(ctx, parsed.Query().Get("token"))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			defer body.Close()
			gomega.Expect(meta.ID).To(gomega.Equal(att.ID))
			gomega.Expect(io.ReadAll(body)).To(gomega.Equal(pdf))
		})

		ginkgo.It("does not sign for users who cannot view the SPM", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = service.SignedURL(ctx, &auth.User{ID: strangerID}, att.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("rejects tokens signed with another key", func() {
			att, err := upload(owner, 100, attachment.CategoryDokumenSPM)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			forged, err := attachment.NewURLSigner("other-secret", time.Minute, "").Sign(att.ID, ownerID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			token := strings.TrimPrefix(forged.URL, "/api/v1/files?token=")

			_, _, err = service.Open(ctx, token)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
		})
	})
})
