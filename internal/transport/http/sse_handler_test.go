package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"live-quiz-service/internal/domain"
)

type sseFrame struct {
	name  string
	event domain.Event
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var frame sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if frame.name != "" {
				return frame
			}
		case strings.HasPrefix(line, "event: "):
			frame.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame.event); err != nil {
				t.Fatalf("decode data: %v", err)
			}
		}
	}
}

func TestStreamInitialBurstAndEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	service, h := newTestAPI(t, APIOptions{Clock: clock, Heartbeat: 10 * time.Second})
	server := httptest.NewServer(h)
	defer server.Close()

	quiz, err := service.CreateQuiz(t.Context(), sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/stream/"+quiz.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	if f := readFrame(t, reader); f.name != "heartbeat" || f.event.Now == 0 {
		t.Fatalf("expected heartbeat first, got %+v", f)
	}
	if f := readFrame(t, reader); f.name != "leaderboard" || f.event.State.Status != domain.StatusDraft {
		t.Fatalf("expected draft leaderboard, got %+v", f)
	}

	if _, err := service.StartQuiz(t.Context(), quiz.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if f := readFrame(t, reader); f.name != "question" || f.event.State.CurrentQuestionIndex != 0 {
		t.Fatalf("expected question frame, got %+v", f)
	}
	if f := readFrame(t, reader); f.name != "quiz_started" {
		t.Fatalf("expected quiz_started frame, got %+v", f)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("heartbeat ticker not registered: %v", err)
	}
	clock.Advance(10 * time.Second)
	if f := readFrame(t, reader); f.name != "heartbeat" {
		t.Fatalf("expected periodic heartbeat, got %+v", f)
	}
}

func TestStreamUnknownQuiz(t *testing.T) {
	_, h := newTestAPI(t, APIOptions{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	if err := writeSSE(&b, domain.Event{Type: domain.EventHeartbeat, Now: 42}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "event: heartbeat\ndata: {\"type\":\"heartbeat\",\"now\":42}\n\n"
	if b.String() != want {
		t.Fatalf("unexpected frame %q", b.String())
	}
}
