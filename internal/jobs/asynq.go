package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Concurrency int
	Poster      Poster
	Logger      *slog.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Poster == nil {
		return nil, errors.New("jobs: poster is required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 1,
		},
		Logger:   newAsynqLogger(cfg.Logger),
		LogLevel: asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			cfg.Logger.Error("notification task failed",
				"type", task.Type(),
				"error", err,
				"retry", retried,
				"max_retry", maxRetry)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSendNotification, SendNotificationHandler(cfg.Poster))

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("shutting down notification worker")
		w.server.Shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

// Client queues notification messages in Redis.
type Client struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

var _ notification.Sender = (*Client)(nil)

func NewClient(redisOpts asynq.RedisClientOpt, timeout time.Duration) *Client {
	return &Client{
		client:   asynq.NewClient(redisOpts),
		maxRetry: 5,
		timeout:  timeout,
	}
}

func (c *Client) Send(ctx context.Context, msg notification.Message) error {
	task, err := NewSendNotificationTask(msg)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(c.maxRetry),
	}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &asynqLogger{logger: logger.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

// Fatal is only logged; asynq exits the process itself after calling it.
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
