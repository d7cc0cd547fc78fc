package hub

import (
	"testing"
	"time"

	"github.com/typewars/typewars-server/internal/game"
)

func recv(t *testing.T, sub *Subscription) game.Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event within a second")
		return game.Event{}
	}
}

func TestPublishReachesGroupMembers(t *testing.T) {
	h := New()
	a := h.Subscribe("sess-1")
	b := h.Subscribe("sess-1")
	other := h.Subscribe("sess-2")

	h.Publish("sess-1", game.Event{Type: "players_update"})

	if ev := recv(t, a); ev.Type != "players_update" {
		t.Errorf("a got %q", ev.Type)
	}
	if ev := recv(t, b); ev.Type != "players_update" {
		t.Errorf("b got %q", ev.Type)
	}
	select {
	case ev := <-other.C:
		t.Errorf("other group received %q", ev.Type)
	default:
	}
}

func TestUnsubscribeCancelsAndStopsDelivery(t *testing.T) {
	h := New()
	sub := h.Subscribe("sess-1")
	h.Unsubscribe("sess-1", sub)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after unsubscribe")
	}

	h.Publish("sess-1", game.Event{Type: "players_update"})
	select {
	case ev := <-sub.C:
		t.Errorf("cancelled subscription received %q", ev.Type)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := New()
	sub := h.Subscribe("sess-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.Publish("sess-1", game.Event{Type: "tick"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	if n := len(sub.C); n > 64 {
		t.Errorf("buffered %d events, cap is 64", n)
	}
}

func TestPerSubscriberOrder(t *testing.T) {
	h := New()
	sub := h.Subscribe("sess-1")
	for _, typ := range []string{"a", "b", "c"} {
		h.Publish("sess-1", game.Event{Type: typ})
	}
	for _, want := range []string{"a", "b", "c"} {
		if ev := recv(t, sub); ev.Type != want {
			t.Fatalf("got %q, want %q", ev.Type, want)
		}
	}
}

func TestHostsGroup(t *testing.T) {
	h := New()
	host := h.SubscribeHosts()
	member := h.Subscribe("sess-1")

	h.PublishHosts(game.Event{Type: game.EventTriggerTick})
	if ev := recv(t, host); ev.Type != game.EventTriggerTick {
		t.Errorf("host got %q", ev.Type)
	}
	select {
	case ev := <-member.C:
		t.Errorf("session member received hosts event %q", ev.Type)
	default:
	}

	h.UnsubscribeHosts(host)
	select {
	case <-host.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after UnsubscribeHosts")
	}
}
