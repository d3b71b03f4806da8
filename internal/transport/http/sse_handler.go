package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// StreamHandler serves the live event stream as Server-Sent Events.
type StreamHandler struct {
	service   *app.QuizService
	clock     clockwork.Clock
	heartbeat time.Duration
}

func NewStreamHandler(service *app.QuizService, clock clockwork.Clock, heartbeat time.Duration) *StreamHandler {
	return &StreamHandler{service: service, clock: clock, heartbeat: heartbeat}
}

// ServeSSE subscribes the client to a quiz and writes one frame per event until the
// client disconnects or the quiz is deleted.
func (h *StreamHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizId")
	events, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("streaming unsupported")
		return
	}

	ticker := h.clock.NewTicker(h.heartbeat)
	defer ticker.Stop()

	log.Debug().Str("quiz_id", quizID).Msg("sse client connected")
	defer log.Debug().Str("quiz_id", quizID).Msg("sse client disconnected")

	for {
		var ev domain.Event
		select {
		case <-r.Context().Done():
			return
		case next, ok := <-events:
			if !ok {
				return
			}
			ev = next
		case now := <-ticker.Chan():
			ev = domain.Event{Type: domain.EventHeartbeat, Now: domain.EpochMillis(now)}
		}
		if err := writeSSE(w, ev); err != nil {
			log.Debug().Err(err).Str("quiz_id", quizID).Msg("sse write failed")
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeSSE writes a single `event:`/`data:` frame.
func writeSSE(w io.Writer, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
