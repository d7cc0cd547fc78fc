// Package ticker is the session timekeeper: a periodic broadcaster that
// wakes every host endpoint, which in turn feeds a tick event into its
// controller. One host per session means one tick per period per session.
package ticker

import (
	"time"

	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/hub"
)

// DefaultPeriod is the tick interval used when none is configured.
const DefaultPeriod = time.Second

type Ticker struct {
	hub    *hub.Hub
	period time.Duration
	stop   chan struct{}
}

func New(h *hub.Hub, period time.Duration) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Ticker{hub: h, period: period, stop: make(chan struct{})}
}

// Run broadcasts a tick signal to the hosts group every period until Stop
// is called. It blocks; run it in its own goroutine.
func (t *Ticker) Run() {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.hub.PublishHosts(game.Event{Type: game.EventTriggerTick})
		case <-t.stop:
			return
		}
	}
}

// Stop terminates the broadcast loop.
func (t *Ticker) Stop() {
	close(t.stop)
}
