package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
)

var (
	ErrQueueFull     = errors.New("notification queue full")
	ErrClientStopped = errors.New("notification client stopped")
)

type Worker struct {
	ID         int
	WorkerPool chan chan notification.Message
	JobChannel chan notification.Message
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan notification.Message, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan notification.Message),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process func(notification.Message)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case msg := <-w.JobChannel:
				w.Logger.Debug("notification worker sending",
					"worker_id", w.ID,
					"type", msg.Type,
					"document_id", msg.DocumentID)
				process(msg)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	SendURL      string
	APIKey       string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

// Client posts notification messages to the external send function. Send only queues;
// the worker pool does the HTTP call.
type Client struct {
	sendURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan notification.Message
	workerPool chan chan notification.Message
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

var _ notification.Sender = (*Client)(nil)

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		sendURL:    config.SendURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan notification.Message, jobQueueSize),
		workerPool: make(chan chan notification.Message, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.process)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("notification worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- msg:
				case <-c.ctx.Done():
					return
				}
			case <-c.ctx.Done():
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

// Send queues msg without blocking.
func (c *Client) Send(_ context.Context, msg notification.Message) error {
	if c.ctx.Err() != nil {
		return ErrClientStopped
	}
	select {
	case c.jobQueue <- msg:
		return nil
	default:
		c.logger.Warn("notification queue full, dropping message",
			"type", msg.Type,
			"document_id", msg.DocumentID,
			"queue_capacity", cap(c.jobQueue))
		return ErrQueueFull
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down notification client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("notification client shutdown complete")
}

func (c *Client) process(msg notification.Message) {
	ctx, cancel := internal.WithTimeout(c.ctx, c.httpClient.Timeout, internal.DefaultOutboundTimeout)
	defer cancel()

	if err := c.Post(ctx, msg); err != nil {
		c.logger.Error("notification send failed",
			"error", err,
			"type", msg.Type,
			"document_id", msg.DocumentID,
			"recipient_user_id", msg.RecipientUserID)
		return
	}
	c.logger.Info("notification sent",
		"type", msg.Type,
		"document_id", msg.DocumentID,
		"recipient_user_id", msg.RecipientUserID)
}

// Post performs the HTTP call synchronously. The asynq worker uses it directly so
// retries are handled by the queue.
func (c *Client) Post(ctx context.Context, msg notification.Message) error {
	if c.sendURL == "" {
		c.logger.Debug("notification send_url not configured, skipping", "type", msg.Type)
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send function returned status %d", resp.StatusCode)
	}
	return nil
}
