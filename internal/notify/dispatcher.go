package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duskline/duskline/internal/config"
)

// sendTimeout bounds each channel delivery so a hung provider can never
// hold a dispatch goroutine indefinitely.
const sendTimeout = 10 * time.Second

// Dispatcher fans events out to the configured channels asynchronously:
// Dispatch enqueues and returns immediately, deliveries happen on a
// background goroutine, and the caller never waits on a network
// operation. Close drains pending dispatches within a bounded grace
// period at shutdown.
type Dispatcher struct {
	channels []Channel

	queue chan Event
	wg    sync.WaitGroup

	mu       sync.Mutex
	seenOrgs map[string]bool
	closed   bool
}

// NewDispatcher builds a Dispatcher from cfg. Only channels that are both
// configured and named in cfg.Channels (empty list = all configured) are
// active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	enabled := make(map[string]bool, len(cfg.Channels))
	for _, name := range cfg.Channels {
		enabled[name] = true
	}

	d := &Dispatcher{
		queue:    make(chan Event, 256),
		seenOrgs: make(map[string]bool),
	}
	for _, ch := range []Channel{
		NewSlack(cfg.Slack),
		NewTelegram(cfg.Telegram),
		NewEmail(cfg.Email),
		NewWebhook(cfg.Webhook),
	} {
		if !ch.IsConfigured() {
			continue
		}
		if len(enabled) > 0 && !enabled[ch.Name()] {
			continue
		}
		d.channels = append(d.channels, ch)
	}

	d.wg.Add(1)
	go d.deliver()
	return d
}

// IsAnyConfigured reports whether at least one channel is active.
func (d *Dispatcher) IsAnyConfigured() bool { return len(d.channels) > 0 }

// Dispatch enqueues evt for background delivery and returns immediately.
// Immediate events are deduplicated per organization: only the first
// findings for an org within a run fire one. Events dispatched
// after Close are dropped silently; events that find the queue full are
// dropped with a diagnostic — notification is best-effort and must never
// block scan progress.
func (d *Dispatcher) Dispatch(evt Event) {
	if len(d.channels) == 0 {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if evt.Kind == EventImmediate {
		if d.seenOrgs[evt.Organization] {
			d.mu.Unlock()
			return
		}
		d.seenOrgs[evt.Organization] = true
	}
	d.mu.Unlock()

	select {
	case d.queue <- evt:
	default:
		slog.Warn("notification queue full; dropping event", "kind", evt.Kind, "target", evt.CanonicalKey)
	}
}

func (d *Dispatcher) deliver() {
	defer d.wg.Done()
	for evt := range d.queue {
		for _, ch := range d.channels {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := ch.Send(ctx, evt); err != nil {
				slog.Warn("notification send failed", "channel", ch.Name(), "kind", evt.Kind, "target", evt.CanonicalKey, "error", err)
			}
			cancel()
		}
	}
}

// Close stops accepting new events and waits for pending deliveries up to
// grace. Deliveries still in flight after grace are
// abandoned.
func (d *Dispatcher) Close(grace time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.queue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("notification drain exceeded grace period; abandoning pending dispatches")
	}
}
