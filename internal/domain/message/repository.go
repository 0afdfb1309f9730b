package message

import (
	"context"
	"time"
)

// Repository stores cached greetings keyed by (person, occurrence
// date).
type Repository interface {
	Get(ctx context.Context, personKey string, date time.Time) (*CachedMessage, error)
	Put(ctx context.Context, msg *CachedMessage) error
	Delete(ctx context.Context, personKey string, date time.Time) error
	// DeleteNonEdited removes every message except hand-edited ones.
	// Used by prompt activation to mark the cache stale in one step.
	DeleteNonEdited(ctx context.Context) error
	List(ctx context.Context) ([]*CachedMessage, error)
}

// FactHistory is the append-only record of historical facts used per
// person. Records are never mutated; PurgePerson exists for explicit
// administrative cleanup only.
type FactHistory interface {
	Append(ctx context.Context, rec *FactRecord) error
	// ListSince returns the facts used for personKey in sinceYear or
	// later. Callers pass the lookback horizon; the store never scans
	// unbounded history.
	ListSince(ctx context.Context, personKey string, sinceYear int) ([]*FactRecord, error)
	PurgePerson(ctx context.Context, personKey string) error
}

// SentLedger records completed deliveries. At most one record exists
// per (person, occurrence date) under normal operation.
type SentLedger interface {
	Get(ctx context.Context, personKey string, date time.Time) (*SentRecord, error)
	Record(ctx context.Context, rec *SentRecord) error
	Clear(ctx context.Context, personKey string, date time.Time) error
}
