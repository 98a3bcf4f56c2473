package generator

import (
	"context"
	"log/slog"
	"time"
)

// loggingProvider decorates a Provider, recording every request as an
// event for audit and cost tracking.
type loggingProvider struct {
	inner  Provider
	events EventSink
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, events EventSink) Provider {
	return &loggingProvider{inner: p, events: events}
}

func (l *loggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	data := EventData{
		Provider:  l.inner.ModelID(),
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
	}

	if err != nil {
		data.ErrorMessage = err.Error()
	}

	// Record the event but never fail the request on a logging error.
	if logErr := l.events.AppendGeneratorEvent(ctx, data); logErr != nil {
		slog.Warn("failed to record generator event", "error", logErr)
	}

	return resp, err
}

func (l *loggingProvider) ModelID() string {
	return l.inner.ModelID()
}
