package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/dashboard"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/frahmantamala/spm-sp2d/internal/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	"github.com/frahmantamala/spm-sp2d/internal/systemconfig"
	"github.com/frahmantamala/spm-sp2d/internal/taxcode"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/internal/transport/middleware"
	"github.com/frahmantamala/spm-sp2d/internal/transport/swagger"
	"github.com/frahmantamala/spm-sp2d/internal/user"
)

// Options carries the HTTP-facing settings the router needs.
type Options struct {
	Development     bool
	AllowedOrigins  string
	RateLimitPerMin int
	MetricsEnabled  bool
	MetricsPath     string
	OpenAPIPath     string
}

// Handlers groups every HTTP handler. A nil handler leaves its routes unmounted.
type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	TaxCode      *taxcode.Handler
	SPM          *spm.Handler
	Attachment   *attachment.Handler
	StepUp       *stepup.Handler
	SP2D         *sp2d.Handler
	BankWebhook  *sp2d.WebhookHandler
	Notification *notification.Handler
	Dashboard    *dashboard.Handler
	SystemConfig *systemconfig.Handler
}

var verifierRoles = []role.Role{
	role.Resepsionis, role.PBMD, role.Akuntansi, role.Perbendaharaan, role.KepalaBKAD,
	role.Administrator, role.SuperAdmin,
}

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, redisClient *redis.Client, h Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db.DB, redisClient)
	rbac := auth.NewRBACAuthorization(logger)
	policy := &auth.DocumentPolicy{}
	ids := transport.NewBaseHandler(logger)

	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 120
	}
	if opts.OpenAPIPath == "" {
		opts.OpenAPIPath = "./api/openapi.yml"
	}

	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.SecureHeaders(opts.Development))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.MetricsEnabled {
		router.Use(middleware.Metrics)
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, metrics.Handler())
	}

	// API document and its UI live outside /api/v1
	router.Get(swagger.DocumentURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.OpenAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler(swagger.DocumentURL))

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(opts.RateLimitPerMin, time.Minute))

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Signed-token download and bank callback carry their own credentials
		if h.Attachment != nil {
			r.Get("/files", h.Attachment.ServeFile)
		}
		if h.BankWebhook != nil {
			r.Post("/sp2d/bank/callback", h.BankWebhook.HandleBankCallback)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Use(middleware.RateLimitByIP(10, time.Minute))
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}
			if h.TaxCode != nil {
				pr.Get("/tax-codes", h.TaxCode.GetTaxCodes)
			}

			if h.SPM != nil {
				pr.Route("/spm", func(sr chi.Router) {
					sr.Get("/", h.SPM.ListSPM)
					sr.Get("/{id}", h.SPM.GetSPM)
					sr.Get("/{id}/history", h.SPM.GetHistory)

					sr.Group(func(br chi.Router) {
						br.Use(rbac.RequireRoles(role.BendaharaOPD, role.Administrator, role.SuperAdmin))
						br.Post("/", h.SPM.CreateSPM)
						br.Put("/{id}", h.SPM.UpdateSPM)
						br.Delete("/{id}", h.SPM.DeleteSPM)
						br.Post("/{id}/submit", h.SPM.SubmitSPM)
					})

					sr.Group(func(vr chi.Router) {
						vr.Use(rbac.RequireRoles(verifierRoles...))
						vr.Post("/{id}/verify", h.SPM.VerifySPM)
					})

					if h.Attachment != nil {
						sr.Route("/{id}/attachments", func(ar chi.Router) {
							ar.Use(auth.RequireCanViewSPM(db, policy, func(r *http.Request) (int64, bool) {
								return ids.ParseIDParam(r, "id")
							}))
							ar.Get("/", h.Attachment.ListAttachments)
							ar.Post("/", h.Attachment.UploadAttachment)
							ar.Delete("/{attachmentId}", h.Attachment.DeleteAttachment)
						})
					}
				})
			}

			if h.Attachment != nil {
				pr.Get("/attachments/{attachmentId}/url", h.Attachment.GetDownloadURL)
			}

			if h.StepUp != nil {
				pr.Group(func(sr chi.Router) {
					sr.Use(rbac.RequireRoles(role.KepalaBKAD, role.Administrator, role.SuperAdmin))
					sr.Use(middleware.RateLimitByUser(5, time.Minute))
					sr.Post("/step-up/pin", h.StepUp.IssueApprovalPIN)
				})
			}

			if h.SP2D != nil {
				pr.Route("/sp2d", func(sr chi.Router) {
					sr.Get("/", h.SP2D.ListSP2D)
					sr.Get("/{id}", h.SP2D.GetSP2D)

					sr.Group(func(kr chi.Router) {
						kr.Use(rbac.RequireRoles(role.KuasaBUD, role.Administrator, role.SuperAdmin))
						kr.Post("/", h.SP2D.CreateSP2D)
						kr.Post("/{id}/send-to-bank", h.SP2D.SendToBank)
						kr.Group(func(or chi.Router) {
							or.Use(middleware.RateLimitByUser(5, time.Minute))
							or.Post("/{id}/otp", h.SP2D.RequestOTP)
							or.Post("/{id}/release", h.SP2D.ReleaseSP2D)
						})
					})
				})
			}

			if h.Notification != nil {
				pr.Route("/notifications", func(nr chi.Router) {
					nr.Get("/", h.Notification.ListNotifications)
					nr.Get("/unread-count", h.Notification.UnreadCount)
					nr.Patch("/read-all", h.Notification.MarkAllRead)
					nr.Patch("/{id}/read", h.Notification.MarkRead)
				})
			}

			if h.Dashboard != nil {
				pr.Get("/dashboard/summary", h.Dashboard.GetSummary)
			}

			if h.SystemConfig != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(rbac.RequireAdmin())
					ar.Get("/system-config", h.SystemConfig.GetSettings)
					ar.Put("/system-config", h.SystemConfig.UpdateSettings)
				})
			}
		})
	})
}
