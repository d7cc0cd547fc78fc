// Package hub is the in-process fan-out substrate: a per-session pub/sub
// group for broadcast events plus a single hosts group the tick source
// feeds. Connection endpoints subscribe on join and drop out on disconnect.
package hub

import (
	"sync"

	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/metrics"
)

const subscriptionBuffer = 64

// Subscription is one endpoint's membership in a group. Events arrive on C;
// Done closes when the subscription is cancelled. Slow subscribers drop
// events rather than block the publisher.
type Subscription struct {
	C    chan game.Event
	done chan struct{}
	once sync.Once
}

func newSubscription() *Subscription {
	return &Subscription{
		C:    make(chan game.Event, subscriptionBuffer),
		done: make(chan struct{}),
	}
}

// Done reports subscription cancellation.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) cancel() {
	s.once.Do(func() { close(s.done) })
}

// Hub tracks the per-session groups and the hosts group.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	hosts  map[*Subscription]struct{}
}

func New() *Hub {
	return &Hub{
		groups: make(map[string]map[*Subscription]struct{}),
		hosts:  make(map[*Subscription]struct{}),
	}
}

// Subscribe joins the named session group.
func (h *Hub) Subscribe(group string) *Subscription {
	sub := newSubscription()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Subscription]struct{})
	}
	h.groups[group][sub] = struct{}{}
	return sub
}

// Unsubscribe leaves the named session group; the group disappears with its
// last member.
func (h *Hub) Unsubscribe(group string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	sub.cancel()
}

// Publish delivers an event to every member of the session group. Each
// member's channel keeps per-subscriber FIFO order; full channels drop.
func (h *Hub) Publish(group string, ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.groups[group]
	metrics.BroadcastRecipients.Observe(float64(len(members)))
	for sub := range members {
		select {
		case sub.C <- ev:
		default:
		}
	}
}

// SubscribeHosts joins the hosts group, which carries only tick signals.
func (h *Hub) SubscribeHosts() *Subscription {
	sub := newSubscription()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hosts[sub] = struct{}{}
	return sub
}

// UnsubscribeHosts leaves the hosts group.
func (h *Hub) UnsubscribeHosts(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.hosts, sub)
	sub.cancel()
}

// PublishHosts delivers an event to every host endpoint.
func (h *Hub) PublishHosts(ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.hosts {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
