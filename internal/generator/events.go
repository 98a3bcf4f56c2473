package generator

import "context"

// EventData captures one content-generator API call.
type EventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// EventSink receives generator events for audit and cost tracking.
// The store's event repository satisfies it; a nil sink disables
// event logging.
type EventSink interface {
	AppendGeneratorEvent(ctx context.Context, data EventData) error
}
