package escrowd

import (
	"log/slog"

	"bountyvault/core/events"
	"bountyvault/observability"
)

// LogEmitter forwards escrow module events to the structured log and the
// metrics registry.
type LogEmitter struct {
	log     *slog.Logger
	metrics *observability.EscrowdMetrics
}

func NewLogEmitter(log *slog.Logger, metrics *observability.EscrowdMetrics) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log, metrics: metrics}
}

func (l *LogEmitter) Emit(evt events.Event) {
	if l == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	l.metrics.RecordEvent(eventType)
	attrs := make([]any, 0, 8)
	attrs = append(attrs, slog.String("event", eventType))
	if payload := evt.Event(); payload != nil {
		for key, value := range payload.Attributes {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	l.log.Info("escrow event", attrs...)
}
