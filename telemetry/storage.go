package telemetry

import "context"

// EventQuery filters Load. Zero-value SelectorName/OperationType match any.
type EventQuery struct {
	SelectorName  string
	OperationType OperationType
	Limit         int
}

// Storage is the persistence boundary the Collector drains batches into
// (spec §6 "Storage backends"). A file-tree or time-series-DB backend can
// satisfy it; checkpoint.FileStore is the in-repo reference implementation.
type Storage interface {
	StoreEvent(ctx context.Context, event Event) error
	StoreEventsBatch(ctx context.Context, events []Event) error
	LoadEvents(ctx context.Context, query EventQuery) ([]Event, error)
}
