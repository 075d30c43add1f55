package outbox

import (
	"context"
	"time"

	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
)

// Attribute keys set on every published message. Subscribers route on
// these without decoding the body.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// Message is the broker-neutral form of a published outbox row.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// NewMessage forwards the stored payload unchanged and copies the row's
// routing columns into attributes.
func NewMessage(row models.OutboxEvent, eventID string) Message {
	return Message{
		Data: row.Payload,
		Attributes: map[string]string{
			AttrEventID:       eventID,
			AttrEventType:     string(row.EventType),
			AttrAggregateType: string(row.AggregateType),
			AttrAggregateID:   row.AggregateID.String(),
			AttrCreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Broker delivers messages to a named topic or subject. Publish returns once
// the broker acknowledged the message.
type Broker interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}
