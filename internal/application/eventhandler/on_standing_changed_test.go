package eventhandler

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/infrastructure/messaging"
)

func changed(id, from, to string) shared.StandingChangedEvent {
	return shared.StandingChangedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventStandingChanged, id),
		FromStanding: from,
		ToStanding:   to,
		Path:         []string{from, to},
	}
}

func TestOnStandingChangedHandler_Stats(t *testing.T) {
	h := NewOnStandingChangedHandler(nil)

	require.NoError(t, h.Handle(changed("1", "Suspended", "Honours")))
	require.NoError(t, h.Handle(changed("2", "Regular", "Probation")))
	require.NoError(t, h.Handle(changed("3", "Probation", "Honours")))
	require.NoError(t, h.Handle(shared.GradeRecordedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventGradeRecorded, "1"),
	}))

	stats := h.Stats()
	assert.Equal(t, 2, stats.Promotions)
	assert.Equal(t, 1, stats.Demotions)
	assert.Equal(t, map[string]int{"Honours": 2, "Probation": 1}, stats.ByTarget)

	stats.ByTarget["Honours"] = 100
	assert.Equal(t, 2, h.Stats().ByTarget["Honours"])
}

func TestOnStandingChangedHandler_RemoteEvent(t *testing.T) {
	h := NewOnStandingChangedHandler(nil)

	payload := `{"instance_id":"other","type":"standing.changed","aggregate_id":"9",` +
		`"timestamp":"2024-09-02T09:00:00Z","payload":{"from_standing":"Honours","to_standing":"Regular"}}`
	event, instance, err := messaging.DecodeMessage([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "other", instance)

	require.NoError(t, h.Handle(event))
	assert.Equal(t, 1, h.Stats().Demotions)

	broken, _, err := messaging.DecodeMessage([]byte(`{"type":"standing.changed","aggregate_id":"9","payload":{}}`))
	require.NoError(t, err)
	assert.Error(t, h.Handle(broken))
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf)

	require.NoError(t, p.Handle(changed("5", "Regular", "Honours")))
	require.NoError(t, p.Handle(shared.EntityNumberedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEntityNumbered, "G-200000"),
		Category:  "NextGradedCourse",
		Number:    "G-200000",
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first struct {
		Type        string         `json:"type"`
		AggregateID string         `json:"aggregate_id"`
		OccurredAt  string         `json:"occurred_at"`
		Payload     map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "standing.changed", first.Type)
	assert.Equal(t, "5", first.AggregateID)
	assert.NotEmpty(t, first.OccurredAt)
	assert.Equal(t, "Honours", first.Payload["to_standing"])
	assert.Contains(t, lines[1], `"number":"G-200000"`)
}
