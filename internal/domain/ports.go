package domain

import (
	"context"
	"time"
)

// ReportMeta identifies the report behind a rendered artefact
type ReportMeta struct {
	Owner     string
	Name      string
	ReportID  string
	WindowEnd time.Time
}

// ReportSink persists rendered Markdown artefacts. Adapters may target the
// filesystem, object stores, git repositories, or remote APIs. Sink writes
// are best-effort from the orchestrator's point of view: the report row is
// already durable when WriteReport runs.
type ReportSink interface {
	WriteReport(ctx context.Context, markdown string, meta ReportMeta) error
}

// EventPublisher pushes domain events to the message broker. Publish
// failures are logged by callers and never abort the operation that raised
// the event.
type EventPublisher interface {
	Publish(ctx context.Context, data EventData) error
	Close() error
}
