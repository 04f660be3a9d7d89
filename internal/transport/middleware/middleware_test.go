package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/spm-sp2d/internal/transport/middleware"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

var _ = Describe("RequestID", func() {
	It("mints a trace id and exposes it to downstream handlers", func() {
		var seen string
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.TraceID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		Expect(rec.Header().Get(middleware.TraceIDHeader)).To(Equal(seen))
	})

	It("replaces an oversized caller trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceIDHeader, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

		Expect(rec.Header().Get(middleware.TraceIDHeader)).To(HaveLen(36))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers 500 with the trace id and logs the panic", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))

		h := middleware.RequestID(middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/spm", nil)
		req.Header.Set(middleware.TraceIDHeader, "trace-recover")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
			TraceID string `json:"trace_id"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Error.Type).To(Equal("INTERNAL_ERROR"))
		Expect(body.TraceID).To(Equal("trace-recover"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
		Expect(buf.String()).To(ContainSubstring("panic recovered"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("masks step-up codes and passwords in logged bodies", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))

		var received string
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := new(bytes.Buffer)
			_, _ = b.ReadFrom(r.Body)
			received = b.String()
			w.WriteHeader(http.StatusOK)
		}))

		payload := `{"action":"approve","pin":"481516","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/spm/1/verify", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(received).To(Equal(payload))
		Expect(buf.String()).To(ContainSubstring("approve"))
		Expect(buf.String()).NotTo(ContainSubstring("481516"))
		Expect(buf.String()).NotTo(ContainSubstring("hunter22"))
	})
})

var _ = Describe("CORS", func() {
	var next http.Handler

	BeforeEach(func() {
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	})

	It("short-circuits preflight requests", func() {
		reached := false
		inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true })
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/spm", nil)
		req.Header.Set("Origin", "https://bkad.example.go.id")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		middleware.CORS("https://bkad.example.go.id")(inner).ServeHTTP(rec, req)

		Expect(reached).To(BeFalse())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://bkad.example.go.id"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("exposes the trace header on actual requests from an allowed origin", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("Origin", "https://bkad.example.go.id")
		rec := httptest.NewRecorder()
		middleware.CORS("https://bkad.example.go.id, https://other.example.go.id")(next).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://bkad.example.go.id"))
		Expect(strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers"))).To(ContainSubstring("x-trace-id"))
	})

	It("allows no origin when none is configured", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("Origin", "https://bkad.example.go.id")
		rec := httptest.NewRecorder()
		middleware.CORS("")(next).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("allows any origin without credentials for a wildcard", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("Origin", "https://other.example")
		rec := httptest.NewRecorder()
		middleware.CORS("*")(next).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())
	})
})
