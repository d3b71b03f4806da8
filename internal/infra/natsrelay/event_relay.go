package natsrelay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "quiz.events"

// EventRelay mirrors quiz events to NATS subjects `<prefix>.<quizID>` for consumers outside
// this process (dashboards, analytics). Delivery is best-effort, like the local fan-out.
type EventRelay struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials NATS and returns a relay publishing under prefix.
func Connect(url, prefix string) (*EventRelay, error) {
	opts := []nats.Option{
		nats.Name("live-quiz-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewEventRelay(nc, prefix), nil
}

func NewEventRelay(nc *nats.Conn, prefix string) *EventRelay {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &EventRelay{nc: nc, prefix: prefix}
}

// Publish implements app.EventSink.
func (r *EventRelay) Publish(quizID string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("quiz_id", quizID).Msg("failed to marshal event for relay")
		return
	}
	if err := r.nc.Publish(Subject(r.prefix, quizID), data); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Str("event_type", string(event.Type)).Msg("failed to relay event")
	}
}

// Close flushes pending messages and closes the connection.
func (r *EventRelay) Close() error {
	return r.nc.Drain()
}

// Subject returns the NATS subject events of quizID are published on.
func Subject(prefix, quizID string) string {
	return prefix + "." + quizID
}
