package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type WSHandler struct {
	service   *app.QuizService
	clock     clockwork.Clock
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, clock clockwork.Clock, heartbeat time.Duration) *WSHandler {
	return &WSHandler{
		service:   service,
		clock:     clock,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	PlayerID   string `json:"playerId"`
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type answerResult struct {
	QuestionID string `json:"questionId"`
	domain.AnswerResult
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades to a websocket that carries the quiz event stream outbound and
// answer submissions inbound. playerId is optional for host or spectator screens.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	playerID := r.URL.Query().Get("playerId")
	if quizID == "" {
		writeError(w, fmt.Errorf("%w: quizId required", domain.ErrInvalidPayload))
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	enqueue := func(msg any) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	// Single writer: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("quiz_id", quizID).Msg("ws write failed")
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		ticker := h.clock.NewTicker(h.heartbeat)
		defer ticker.Stop()
		for {
			var msg any
			select {
			case update, ok := <-updates:
				if !ok {
					// Quiz deleted: unblock the reader.
					conn.Close()
					return
				}
				msg = update
			case now := <-ticker.Chan():
				msg = domain.Event{Type: domain.EventHeartbeat, Now: domain.EpochMillis(now)}
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			case <-writerDone:
				return
			}
		}
	}()

	log.Debug().Str("quiz_id", quizID).Str("player_id", playerID).Msg("ws client connected")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				enqueue(errorMessage("invalid answer payload"))
				continue
			}
			if payload.PlayerID == "" {
				payload.PlayerID = playerID
			}
			res, err := h.service.SubmitAnswer(r.Context(), quizID, domain.AnswerSubmission{
				PlayerID:   payload.PlayerID,
				QuestionID: payload.QuestionID,
				OptionID:   payload.OptionID,
			})
			if err != nil {
				enqueue(errorMessage(err.Error()))
				continue
			}
			enqueue(outboundMessage[answerResult]{Type: "answerResult", Payload: answerResult{
				QuestionID:   payload.QuestionID,
				AnswerResult: res,
			}})
		default:
			enqueue(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug().Str("quiz_id", quizID).Str("player_id", playerID).Msg("ws client disconnected")
}
