package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	notificationDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
)

type RepositoryAPI interface {
	Create(ctx context.Context, n *notificationDatamodel.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*notificationDatamodel.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// Service is the single notification boundary. The in-app row is written with the
// caller's transaction; the external send happens only after that transaction commits.
type Service struct {
	repo    RepositoryAPI
	sender  Sender
	channel string
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, sender Sender, channel string, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		sender:  sender,
		channel: channel,
		logger:  logger,
	}
}

func (s *Service) Notify(ctx context.Context, ev Event) error {
	title, body := Render(ev)

	row, err := toDataModel(ev, title, body)
	if err != nil {
		return internal.NewInternalError("failed to encode notification metadata", err)
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to store notification",
			"error", err,
			"user_id", ev.RecipientUserID,
			"document_type", ev.DocumentType,
			"document_id", ev.DocumentID)
		return internal.NewPersistenceError("store notification", err)
	}

	msg := Message{
		Type:            ev.DocumentType,
		DocumentID:      ev.DocumentID,
		Action:          ev.Action,
		Stage:           ev.Stage,
		VerifiedBy:      ev.ActorID,
		Notes:           ev.Notes,
		RecipientUserID: ev.RecipientUserID,
		Title:           title,
		Message:         body,
	}
	database.AfterCommit(ctx, func(ctx context.Context) {
		s.dispatch(ctx, msg)
	})
	return nil
}

// dispatch never fails the caller; errors end up in the log and the dispatch counter.
func (s *Service) dispatch(ctx context.Context, msg Message) {
	if s.sender == nil {
		return
	}
	err := s.sender.Send(ctx, msg)
	metrics.RecordNotificationDispatch(s.channel, err)
	if err != nil {
		s.logger.Error("failed to queue external notification",
			"error", err,
			"channel", s.channel,
			"user_id", msg.RecipientUserID,
			"document_type", msg.Type,
			"document_id", msg.DocumentID)
	}
}

var _ stepup.Deliverer = (*Service)(nil)

// DeliverCode sends a PIN or OTP over the external channel only. Codes are never stored
// in-app and never logged.
func (s *Service) DeliverCode(ctx context.Context, userID int64, purpose stepup.Purpose, code string, expiresAt time.Time) error {
	if s.sender == nil {
		return errors.New("no external notification channel configured")
	}
	label := "PIN persetujuan"
	if purpose == stepup.PurposeDisbursementOTP {
		label = "OTP pencairan"
	}
	err := s.sender.Send(ctx, Message{
		Type:            DocumentStepUp,
		Action:          string(purpose),
		RecipientUserID: userID,
		Title:           label,
		Message:         printer.Sprintf("%s Anda: %s. Berlaku sampai %s.", label, code, expiresAt.Format("15:04 02-01-2006")),
	})
	metrics.RecordNotificationDispatch(s.channel, err)
	return err
}

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*Notification, error) {
	rows, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, internal.NewPersistenceError("list notifications", err)
	}
	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, internal.NewPersistenceError("count notifications", err)
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.MarkRead(ctx, userID, id, time.Now())
	if err != nil {
		return internal.NewPersistenceError("mark notification read", err)
	}
	if !ok {
		return internal.ErrNotificationNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, time.Now())
	if err != nil {
		return 0, internal.NewPersistenceError("mark notifications read", err)
	}
	s.logger.Info("notifications marked read", "user_id", userID, "count", n)
	return n, nil
}
