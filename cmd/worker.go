package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/spm-sp2d/internal/jobs"
	"github.com/frahmantamala/spm-sp2d/internal/notification/gateway"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that drain the queues filled by the HTTP server.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start the notification delivery worker",
	Long:  `Consume queued notification messages from redis and post them to the external send function`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	concurrency int
	sendURL     string
	apiKey      string
)

func startNotificationWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if config.Redis.Addr == "" {
		fmt.Fprintln(os.Stderr, "redis.addr is required for the notification worker")
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	// Post is synchronous; the pool itself stays idle in this process
	poster := gateway.NewClient(gateway.Config{
		SendURL:    getStringFlag(sendURL, config.Notification.SendURL),
		APIKey:     getStringFlag(apiKey, config.Notification.APIKey),
		Timeout:    config.Notification.Timeout,
		MaxWorkers: 1,
	}, logger)
	defer poster.Shutdown()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisClientOpt(config.Redis),
		Concurrency: getIntFlag(concurrency, config.Notification.MaxWorkers),
		Poster:      poster,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create worker: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notification worker is running. Press Ctrl+C to stop.",
		"redis_addr", config.Redis.Addr,
		"send_url", getStringFlag(sendURL, config.Notification.SendURL))

	if err := worker.Run(ctx); err != nil {
		logger.Error("notification worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("notification worker shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of concurrent deliveries (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&sendURL, "send-url", "", "Notification send function URL (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "Notification send function API key (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
