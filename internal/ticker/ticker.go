// internal/ticker/ticker.go
//
// Periodic timer that drives a round's clock.
// A Timer starts callbacks; the returned Handle stops them. Stop is
// idempotent and never waits for an in-flight tick.

package ticker

import (
	"sync"
	"time"
)

// Timer starts periodic callbacks.
type Timer interface {
	// Start calls onTick about once per interval until the handle is stopped.
	Start(onTick func()) Handle
}

// Handle cancels a started timer.
type Handle interface {
	// Stop is idempotent and never waits for an in-flight tick.
	Stop()
}

// Ticker is a Timer backed by time.Ticker.
type Ticker struct {
	interval time.Duration
}

// New returns a Ticker firing every interval (one second if interval <= 0).
func New(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

// Start launches a goroutine that calls onTick until the handle is stopped.
func (t *Ticker) Start(onTick func()) Handle {
	h := &handle{done: make(chan struct{})}
	tk := time.NewTicker(t.interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-tk.C:
				// Stop may race with a pending tick; prefer Stop.
				select {
				case <-h.done:
					return
				default:
				}
				onTick()
			}
		}
	}()
	return h
}

type handle struct {
	once sync.Once
	done chan struct{}
}

func (h *handle) Stop() {
	h.once.Do(func() { close(h.done) })
}
