package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	attachmentPostgres "github.com/frahmantamala/spm-sp2d/internal/attachment/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	authPostgres "github.com/frahmantamala/spm-sp2d/internal/auth/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/dashboard"
	dashboardPostgres "github.com/frahmantamala/spm-sp2d/internal/dashboard/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/jobs"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/notification/gateway"
	notificationPostgres "github.com/frahmantamala/spm-sp2d/internal/notification/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	rolePostgres "github.com/frahmantamala/spm-sp2d/internal/role/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/sp2d"
	sp2dPostgres "github.com/frahmantamala/spm-sp2d/internal/sp2d/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	spmPostgres "github.com/frahmantamala/spm-sp2d/internal/spm/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	stepupPostgres "github.com/frahmantamala/spm-sp2d/internal/stepup/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/systemconfig"
	systemconfigPostgres "github.com/frahmantamala/spm-sp2d/internal/systemconfig/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/taxcode"
	taxcodePostgres "github.com/frahmantamala/spm-sp2d/internal/taxcode/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/transport"
	"github.com/frahmantamala/spm-sp2d/internal/transport/rest"
	"github.com/frahmantamala/spm-sp2d/internal/user"
	userPostgres "github.com/frahmantamala/spm-sp2d/internal/user/postgres"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	Router   *chi.Mux
	Handlers rest.Handlers
	Logger   *slog.Logger

	// closers run in order on shutdown
	closers []func()
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Server.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := internal.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout, internal.DefaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func (d *Dependencies) close() {
	for _, c := range d.closers {
		c()
	}
}

func setupRoutes(deps *Dependencies) {
	rest.RegisterAllRoutes(deps.Router, deps.DB, deps.Redis, deps.Handlers, rest.Options{
		Development:     !deps.Config.IsProduction(),
		AllowedOrigins:  deps.Config.Server.AllowedOrigins,
		RateLimitPerMin: deps.Config.Server.RateLimitPerMin,
		MetricsEnabled:  deps.Config.Observability.Metrics.Enabled,
		MetricsPath:     deps.Config.Observability.Metrics.Path,
	}, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := database.OpenGorm(db.DB, logger.Level() <= slog.LevelDebug)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gormDB,
		Redis:  initRedis(config.Redis),
		Router: chi.NewRouter(),
		Logger: lg,
	}

	sender, closeSender := initNotificationSender(config, lg)
	deps.closers = append(deps.closers, closeSender)
	if deps.Redis != nil {
		deps.closers = append(deps.closers, func() {
			if err := deps.Redis.Close(); err != nil {
				lg.Error("Redis close error", "error", err)
			}
		})
	}
	deps.closers = append(deps.closers, func() {
		if err := db.Close(); err != nil {
			lg.Error("Database close error", "error", err)
		}
	})

	if err := wireHandlers(deps, sender); err != nil {
		deps.close()
		return nil, err
	}
	return deps, nil
}

func wireHandlers(deps *Dependencies, sender notification.Sender) error {
	cfg, gormDB, lg := deps.Config, deps.Gorm, deps.Logger

	txManager := database.NewTxManager(gormDB, lg)
	roleDirectory := role.NewDirectory(rolePostgres.NewRoleRepository(gormDB), lg)

	tokenGenerator := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), roleDirectory, tokenGenerator, cfg.Security.BCryptCost, lg)

	settings := systemconfig.NewService(systemconfigPostgres.NewSettingRepository(gormDB), lg)
	notifications := notification.NewService(notificationPostgres.NewNotificationRepository(gormDB), sender, cfg.Notification.Driver, lg)
	gate := stepup.NewGate(stepupPostgres.NewCodeRepository(gormDB), settings, notifications, stepup.GateConfig{
		CodeTTL:    cfg.StepUp.CodeTTL,
		CodeLength: cfg.StepUp.CodeLength,
		HashCost:   cfg.Security.BCryptCost,
	}, lg)

	dashboardService := dashboard.NewService(
		dashboardPostgres.NewDashboardRepository(gormDB),
		dashboard.NewCache(deps.Redis, cfg.Redis.CacheTTL, lg),
		nil, lg)
	taxCodes := taxcode.NewService(taxcodePostgres.NewTaxCodeRepository(gormDB), lg)

	store, err := attachment.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("failed to open attachment storage: %w", err)
	}
	signer := attachment.NewURLSigner(cfg.Storage.SigningKey, cfg.Storage.SignedURLTTL, cfg.Server.BaseURL)

	// the attachment service reads SPMs while the workflow asks it for completeness
	var spmService *spm.Service
	attachments := attachment.NewService(
		attachmentPostgres.NewAttachmentRepository(gormDB),
		store, signer,
		attachment.DocumentSourceFunc(func(ctx context.Context, id int64, u *auth.User) (*spm.SPM, error) {
			return spmService.Get(ctx, id, u)
		}),
		cfg.Storage.MaxFileSize, lg)

	spmService = spm.NewService(spm.Dependencies{
		Repo:        spmPostgres.NewSPMRepository(gormDB),
		Tx:          txManager,
		Roles:       roleDirectory,
		Gate:        gate,
		Notifier:    notifications,
		Attachments: attachments,
		TaxCodes:    taxCodes,
		Cache:       dashboardService,
	}, lg)

	sp2dService := sp2d.NewService(sp2d.Dependencies{
		Repo:     sp2dPostgres.NewSP2DRepository(gormDB),
		SPM:      spmService,
		Tx:       txManager,
		Roles:    roleDirectory,
		Gate:     gate,
		Notifier: notifications,
		Cache:    dashboardService,
	}, lg)

	deps.Handlers = rest.Handlers{
		Auth:         auth.NewHandler(authService),
		User:         user.NewHandler(user.NewService(userPostgres.NewUserRepository(gormDB), lg)),
		TaxCode:      taxcode.NewHandler(taxCodes),
		SPM:          spm.NewHandler(spmService),
		Attachment:   attachment.NewHandler(attachments, cfg.Storage.MaxFileSize),
		StepUp:       stepup.NewHandler(gate),
		SP2D:         sp2d.NewHandler(sp2dService),
		BankWebhook:  sp2d.NewWebhookHandler(transport.NewBaseHandler(lg), sp2dService, cfg.Bank.CallbackSecret, lg),
		Notification: notification.NewHandler(notifications),
		Dashboard:    dashboard.NewHandler(dashboardService),
		SystemConfig: systemconfig.NewHandler(settings),
	}
	return nil
}

// initNotificationSender picks the external delivery path. The returned func releases it.
func initNotificationSender(cfg *internal.Config, lg *slog.Logger) (notification.Sender, func()) {
	if cfg.Notification.Driver == "redis" {
		client := jobs.NewClient(redisClientOpt(cfg.Redis), cfg.Notification.Timeout)
		lg.Info("notifications queued through redis", "addr", cfg.Redis.Addr)
		return client, func() {
			if err := client.Close(); err != nil {
				lg.Error("notification queue close error", "error", err)
			}
		}
	}

	client := gateway.NewClient(gateway.Config{
		SendURL:      cfg.Notification.SendURL,
		APIKey:       cfg.Notification.APIKey,
		Timeout:      cfg.Notification.Timeout,
		MaxWorkers:   cfg.Notification.MaxWorkers,
		JobQueueSize: cfg.Notification.JobQueueSize,
	}, lg)
	return client, client.Shutdown
}

func initRedis(cfg internal.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func redisClientOpt(cfg internal.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Open(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
