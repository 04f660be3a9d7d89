package notification

import (
	"context"
	"encoding/json"
	"time"

	notificationDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/notification"
	"gorm.io/datatypes"
)

const (
	DocumentSPM  = "spm"
	DocumentSP2D = "sp2d"
	// DocumentStepUp marks PIN/OTP deliveries. They never produce an in-app row.
	DocumentStepUp = "step_up"
)

// Event is a workflow outcome addressed to one user.
type Event struct {
	RecipientUserID int64
	DocumentType    string
	DocumentID      int64
	DocumentNumber  string
	Action          string
	Stage           string
	FromStatus      string
	ToStatus        string
	ActorID         *int64
	Notes           string
	Amount          int64
}

// Message is the payload handed to the external send function.
type Message struct {
	Type            string `json:"type"`
	DocumentID      int64  `json:"document_id"`
	Action          string `json:"action"`
	Stage           string `json:"stage,omitempty"`
	VerifiedBy      *int64 `json:"verified_by,omitempty"`
	Notes           string `json:"notes,omitempty"`
	RecipientUserID int64  `json:"recipient_user_id"`
	Title           string `json:"title"`
	Message         string `json:"message"`
}

// Sender delivers a message over the external channel. Implementations queue and return
// quickly; an error only means the message could not be queued.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Notification struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	DocumentType string          `json:"document_type"`
	DocumentID   int64           `json:"document_id"`
	Action       string          `json:"action"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	IsRead       bool            `json:"is_read"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type metadata struct {
	Stage      string `json:"stage,omitempty"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	ActorID    *int64 `json:"actor_id,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:           n.ID,
		UserID:       n.UserID,
		Title:        n.Title,
		Message:      n.Message,
		DocumentType: n.DocumentType,
		DocumentID:   n.DocumentID,
		Action:       n.Action,
		Metadata:     json.RawMessage(n.Metadata),
		IsRead:       n.IsRead,
		ReadAt:       n.ReadAt,
		CreatedAt:    n.CreatedAt,
	}
}

func toDataModel(ev Event, title, body string) (*notificationDatamodel.Notification, error) {
	meta, err := json.Marshal(metadata{
		Stage:      ev.Stage,
		FromStatus: ev.FromStatus,
		ToStatus:   ev.ToStatus,
		ActorID:    ev.ActorID,
		Notes:      ev.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &notificationDatamodel.Notification{
		UserID:       ev.RecipientUserID,
		Title:        title,
		Message:      body,
		DocumentType: ev.DocumentType,
		DocumentID:   ev.DocumentID,
		Action:       ev.Action,
		Metadata:     datatypes.JSON(meta),
	}, nil
}
