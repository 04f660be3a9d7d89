package attachment_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
)

// recordingService keeps the last upload so tests can inspect what the handler passed on.
type recordingService struct {
	attachment.ServiceAPI
	last attachment.UploadInput
	body []byte
}

func (r *recordingService) Upload(_ context.Context, _ *auth.User, in attachment.UploadInput) (*attachment.Attachment, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	r.last = in
	r.body = body
	return &attachment.Attachment{ID: 1, FileName: in.FileName, ContentType: in.ContentType}, nil
}

var _ = ginkgo.Describe("UploadAttachment", func() {
	var (
		service *recordingService
		handler *attachment.Handler
	)

	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	upload := func(partType string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		gomega.Expect(mw.WriteField("category", attachment.CategoryDokumenSPM)).To(gomega.Succeed())

		part := textproto.MIMEHeader{}
		part.Set("Content-Disposition", `form-data; name="file"; filename="scan.pdf"`)
		if partType != "" {
			part.Set("Content-Type", partType)
		}
		fw, err := mw.CreatePart(part)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		_, err = fw.Write(content)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(mw.Close()).To(gomega.Succeed())

		req := httptest.NewRequest(http.MethodPost, "/spm/100/attachments", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", "100")
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		ctx = auth.WithUser(ctx, &auth.User{ID: ownerID})

		rec := httptest.NewRecorder()
		handler.UploadAttachment(rec, req.WithContext(ctx))
		return rec
	}

	ginkgo.BeforeEach(func() {
		service = &recordingService{}
		handler = attachment.NewHandler(service, 1<<20)
	})

	ginkgo.It("sniffs a PDF sent as a generic binary part", func() {
		rec := upload("application/octet-stream", pdf)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(service.last.ContentType).To(gomega.Equal("application/pdf"))
		gomega.Expect(service.body).To(gomega.Equal(pdf))
	})

	ginkgo.It("sniffs when the part carries no content type", func() {
		rec := upload("", pdf)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(service.last.ContentType).To(gomega.Equal("application/pdf"))
	})

	ginkgo.It("keeps a specific declared content type", func() {
		rec := upload("image/png", pdf)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(service.last.ContentType).To(gomega.Equal("image/png"))
	})

	ginkgo.It("passes the file name and category through", func() {
		upload("application/octet-stream", pdf)
		gomega.Expect(service.last.FileName).To(gomega.Equal("scan.pdf"))
		gomega.Expect(service.last.Category).To(gomega.Equal(attachment.CategoryDokumenSPM))
		gomega.Expect(service.last.SPMID).To(gomega.Equal(int64(100)))
	})
})
