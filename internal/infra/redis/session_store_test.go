package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"

	"live-quiz-service/internal/app"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)

	session := app.NewSession(sampleQuiz("quiz-1", "ABC234"), app.SessionDeps{})
	if got := store.LoadOrStore(session); got != session {
		t.Fatalf("expected session stored")
	}
	if got, _ := mr.Get("quiz:session:quiz-1"); got != "ABC234" {
		t.Fatalf("expected marker holding join code, got %q", got)
	}
	if ttl := mr.TTL("quiz:session:quiz-1"); ttl != time.Minute {
		t.Fatalf("expected marker ttl of 1m, got %v", ttl)
	}

	store.Delete("quiz-1")
	if mr.Exists("quiz:session:quiz-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionStoreRefreshesMarkerOnAccess(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	clock := clockwork.NewFakeClock()
	store := NewSessionStore(newClient(mr), time.Minute)
	store.clock = clock

	session := app.NewSession(sampleQuiz("quiz-1", "ABC234"), app.SessionDeps{})
	store.LoadOrStore(session)

	mr.FastForward(20 * time.Second)
	clock.Advance(20 * time.Second)
	store.Get("quiz-1")
	if ttl := mr.TTL("quiz:session:quiz-1"); ttl != 40*time.Second {
		t.Fatalf("expected marker untouched before half ttl, got %v", ttl)
	}

	mr.FastForward(40 * time.Second)
	if mr.Exists("quiz:session:quiz-1") {
		t.Fatalf("expected marker to lapse without access")
	}
	clock.Advance(40 * time.Second)
	if _, ok := store.Get("quiz-1"); !ok {
		t.Fatalf("expected session still stored")
	}
	if got, _ := mr.Get("quiz:session:quiz-1"); got != "ABC234" {
		t.Fatalf("expected marker rewritten on access, got %q", got)
	}
	if ttl := mr.TTL("quiz:session:quiz-1"); ttl != time.Minute {
		t.Fatalf("expected refreshed ttl of 1m, got %v", ttl)
	}

	store.Delete("quiz-1")
	clock.Advance(time.Hour)
	store.Get("quiz-1")
	if mr.Exists("quiz:session:quiz-1") {
		t.Fatalf("expected no marker after delete")
	}
}
