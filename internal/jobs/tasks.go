package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/hibiken/asynq"
)

const (
	QueueNotifications = "notifications"

	TaskTypeSendNotification = "notification:send"
)

// Poster performs the actual HTTP call to the send function.
type Poster interface {
	Post(ctx context.Context, msg notification.Message) error
}

func NewSendNotificationTask(msg notification.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendNotification, data), nil
}

// SendNotificationHandler returns the asynq handler for TaskTypeSendNotification.
// Malformed payloads are not retried; send failures are, with asynq's backoff.
func SendNotificationHandler(poster Poster) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var msg notification.Message
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			return fmt.Errorf("decode notification payload: %v: %w", err, asynq.SkipRetry)
		}
		return poster.Post(ctx, msg)
	}
}
