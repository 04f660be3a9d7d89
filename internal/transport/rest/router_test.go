package rest_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/dashboard"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database/dbtest"
	"github.com/frahmantamala/spm-sp2d/internal/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	"github.com/frahmantamala/spm-sp2d/internal/systemconfig"
	"github.com/frahmantamala/spm-sp2d/internal/taxcode"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/internal/transport/rest"
	"github.com/frahmantamala/spm-sp2d/internal/user"
)

const openAPIPath = "../../../api/openapi.yml"

var _ = Describe("Router", func() {
	var (
		gormDB *gorm.DB
		router *chi.Mux
		doc    *openapi3.T
	)

	BeforeEach(func() {
		var err error
		gormDB, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := gormDB.DB()
		Expect(err).NotTo(HaveOccurred())

		lg := slog.Default()
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, sqlx.NewDb(sqlDB, "sqlite3"), nil, rest.Handlers{
			Auth:         auth.NewHandler(nil),
			User:         user.NewHandler(nil),
			TaxCode:      taxcode.NewHandler(nil),
			SPM:          spm.NewHandler(nil),
			Attachment:   attachment.NewHandler(nil, 0),
			StepUp:       stepup.NewHandler(nil),
			SP2D:         sp2d.NewHandler(nil),
			BankWebhook:  sp2d.NewWebhookHandler(transport.NewBaseHandler(lg), nil, "callback-secret", lg),
			Notification: notification.NewHandler(nil),
			Dashboard:    dashboard.NewHandler(nil),
			SystemConfig: systemconfig.NewHandler(nil),
		}, rest.Options{
			AllowedOrigins: "https://treasury.example.go.id",
			MetricsEnabled: true,
			OpenAPIPath:    openAPIPath,
		}, lg)

		loader := openapi3.NewLoader()
		doc, err = loader.LoadFromFile(openAPIPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Validate(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		Expect(dbtest.Close(gormDB)).To(Succeed())
	})

	walkAPI := func() map[string]bool {
		routes := map[string]bool{}
		err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if !strings.HasPrefix(route, "/api/v1/") {
				return nil
			}
			path := strings.TrimPrefix(route, "/api/v1")
			if len(path) > 1 {
				path = strings.TrimSuffix(path, "/")
			}
			routes[method+" "+path] = true
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		return routes
	}

	It("documents every mounted API route", func() {
		routes := walkAPI()
		Expect(routes).NotTo(BeEmpty())

		for key := range routes {
			parts := strings.SplitN(key, " ", 2)
			item := doc.Paths.Find(parts[1])
			Expect(item).NotTo(BeNil(), "missing path %s", parts[1])
			Expect(item.GetOperation(parts[0])).NotTo(BeNil(), "missing operation %s", key)
		}
	})

	It("mounts every documented operation", func() {
		routes := walkAPI()
		for path, item := range doc.Paths.Map() {
			for method := range item.Operations() {
				Expect(routes).To(HaveKey(method+" "+path), "documented but not routed")
			}
		}
	})

	It("answers ping with trace and hardening headers", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
		Expect(rec.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
		Expect(rec.Header().Get("X-Frame-Options")).To(Equal("DENY"))
	})

	It("echoes the given trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("X-Trace-ID", "trace-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-123"))
	})

	It("reports the database in the health check", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"postgres"`))
		Expect(rec.Body.String()).NotTo(ContainSubstring(`"redis"`))
	})

	It("rejects protected routes without a bearer token", func() {
		for _, path := range []string{"/api/v1/spm", "/api/v1/sp2d/1", "/api/v1/system-config", "/api/v1/dashboard/summary"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized), path)
		}
	})

	It("refuses a bank callback without the shared secret", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sp2d/bank/callback",
			strings.NewReader(`{"nomor_sp2d":"SP2D-1","status":"success","reference":"R1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("requires a token for file downloads", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	Describe("CORS", func() {
		preflight := func(origin string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/spm", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("answers preflight for an allowed origin", func() {
			rec := preflight("https://treasury.example.go.id")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://treasury.example.go.id"))
			Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})

		It("does not echo an unknown origin", func() {
			rec := preflight("https://evil.example.com")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	It("serves prometheus metrics", func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("go_goroutines"))
	})

	It("serves the OpenAPI document", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("SPM/SP2D Disbursement API"))
	})
})
