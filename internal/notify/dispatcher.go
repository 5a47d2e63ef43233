package notify

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher delivers payloads to every configured sink independently.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
}

// NewDispatcher creates a dispatcher over the given sinks. timeout <= 0
// falls back to DefaultSendTimeout.
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{sinks: sinks, timeout: timeout}
}

// Dispatch attempts delivery to every sink. Each attempt gets its own
// bounded context, detached from the caller's cancellation so stopping
// the scheduler does not interrupt in-flight sends. A failure is logged
// and does not block the remaining sinks or reach the caller. There is
// no retry.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) {
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		err := sink.Send(sendCtx, p)
		cancel()
		if err != nil {
			slog.Error("Notification delivery failed",
				"sink", sink.Name(),
				"event", p.Event,
				"error", err)
			continue
		}
		slog.Debug("Notification delivered", "sink", sink.Name(), "event", p.Event)
	}
}
