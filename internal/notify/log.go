package notify

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the structured log. Always succeeds; it
// exists so every event leaves a trace even with no external channels
// configured.
type LogSink struct{}

// NewLogSink creates a log sink.
func NewLogSink() *LogSink { return &LogSink{} }

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Send(_ context.Context, p Payload) error {
	attrs := []any{"event", p.Event, "title", p.Title, "body", p.Body}
	for _, f := range p.Facts {
		attrs = append(attrs, f.Name, f.Value)
	}
	slog.Info("Notification", attrs...)
	return nil
}
