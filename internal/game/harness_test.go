package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/typewars/typewars-server/internal/words"
)

// listSource feeds the provider fixed word pools.
type listSource struct {
	regular []string
	yo      []string
}

func (s listSource) RegularWords() ([]string, error) { return s.regular, nil }
func (s listSource) YoWords() ([]string, error)      { return s.yo, nil }

func testProvider(t *testing.T) *words.Provider {
	t.Helper()
	source := listSource{
		regular: []string{"карта", "стол", "окно", "дом", "игра", "слово", "буква", "время"},
		yo:      []string{"ёжик", "ёлка"},
	}
	p, err := words.NewProvider(source, 1)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

// fakeRepo is an in-memory Repository for controller tests.
type fakeRepo struct {
	session   *Session
	password  string
	results   []Result
	saveErr   error
	successor *Session
}

func newFakeRepo(mode string, playersMax int) *fakeRepo {
	return &fakeRepo{
		session: &Session{
			ID:         "sess-1",
			Mode:       mode,
			Name:       "test room",
			PlayersMax: playersMax,
		},
	}
}

func (r *fakeRepo) SessionByID(id string) (*Session, error) {
	if r.session == nil || r.session.ID != id {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	copied := *r.session
	return &copied, nil
}

func (r *fakeRepo) SetPlayersNow(sessionID string, n int) error {
	r.session.PlayersNow = n
	return nil
}

func (r *fakeRepo) MarkStarted(sessionID string, at time.Time) error {
	if r.session.StartedAt == nil {
		r.session.StartedAt = &at
	}
	return nil
}

func (r *fakeRepo) MarkFinished(sessionID string, at time.Time) error {
	if r.session.FinishedAt == nil {
		r.session.Finished = true
		r.session.FinishedAt = &at
	}
	return nil
}

func (r *fakeRepo) SaveResults(sessionID string, results []Result) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.results = results
	return nil
}

func (r *fakeRepo) CreateSuccessor(prev *Session, newMode string) (*Session, error) {
	r.successor = &Session{
		ID:         "sess-2",
		Mode:       newMode,
		Name:       prev.Name + "#next",
		PlayersMax: prev.PlayersMax,
	}
	return r.successor, nil
}

func (r *fakeRepo) CheckPassword(session *Session, password string) bool {
	return r.password == password
}

// manualClock drives controller time in tests.
type manualClock struct {
	t time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) now() time.Time { return c.t }

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(t *testing.T, mode string, playersMax int) (*Controller, *fakeRepo, *manualClock) {
	t.Helper()
	repo := newFakeRepo(mode, playersMax)
	c, err := NewController(repo, testProvider(t), "sess-1")
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	clock := newManualClock()
	c.now = clock.now
	return c, repo, clock
}

func record(id int64, name string) *PlayerRecord {
	return &PlayerRecord{ID: id, Username: name, DisplayedName: name}
}

func dispatch(t *testing.T, c *Controller, eventType string, player *PlayerRecord, payload any) []Event {
	t.Helper()
	events, err := c.PlayerEvent(Event{
		Type: eventType,
		Data: PlayerMessage{Player: player, Payload: payload},
	})
	if err != nil {
		t.Fatalf("%s event: %v", eventType, err)
	}
	return events
}

func join(t *testing.T, c *Controller, player *PlayerRecord) []Event {
	t.Helper()
	return dispatch(t, c, EventPlayerJoined, player, nil)
}

func ready(t *testing.T, c *Controller, player *PlayerRecord) []Event {
	t.Helper()
	return dispatch(t, c, EventPlayerReadyState, player, true)
}

func tick(t *testing.T, c *Controller, host *PlayerRecord) []Event {
	t.Helper()
	return dispatch(t, c, EventTriggerTick, host, nil)
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func hasEvent(events []Event, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func findEvent(t *testing.T, events []Event, eventType string) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == eventType {
			return ev
		}
	}
	t.Fatalf("no %s event in %v", eventType, eventTypes(events))
	return Event{}
}

// expectedWord peeks at the word the player must type next.
func expectedWord(c *Controller, player *PlayerRecord) string {
	local, _ := c.players.GetPlayer(player)
	return c.provider.WordAt(local.NextWordPosition())
}
