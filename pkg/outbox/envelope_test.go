package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
)

func TestNewEnvelopeDefaults(t *testing.T) {
	actor := &ActorRef{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	env, err := newEnvelope(DomainEvent{
		EventType: enums.EventListingDeleted,
		Actor:     actor,
		Data:      map[string]string{"listing_id": "abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, envelopeVersion, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.WithinDuration(t, time.Now(), env.OccurredAt, time.Minute)
	assert.Equal(t, actor, env.Actor)
	assert.JSONEq(t, `{"listing_id":"abc"}`, string(env.Data))
}

func TestNewEnvelopeRejectsUnencodableData(t *testing.T) {
	_, err := newEnvelope(DomainEvent{EventType: enums.EventListingCreated, Data: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeEnvelopeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(PayloadEnvelope{Version: 2, EventID: "e-1", Data: json.RawMessage(`{"n":1}`)})
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, env.Version)

	var data struct{ N int }
	require.NoError(t, env.DecodeData(&data))
	assert.Equal(t, 1, data.N)
}

func TestDecodeDataRejectsEmpty(t *testing.T) {
	for _, data := range []string{"", "null", "  null "} {
		env := PayloadEnvelope{Data: json.RawMessage(data)}
		var dst map[string]any
		assert.True(t, errors.Is(env.DecodeData(&dst), ErrEmptyPayload), "data %q", data)
	}

	_, err := DecodeEnvelope([]byte("{"))
	assert.Error(t, err)
}
