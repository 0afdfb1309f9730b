package message

import "time"

// CachedMessage is one prepared greeting for a (person, occurrence
// date) pair. The pair is the unique key across the whole system.
//
// A message is stale when its PromptID no longer matches the active
// prompt template, unless Edited is set: hand-edited messages are never
// silently regenerated. A Fallback message is always eligible for
// regeneration on the next refresh.
type CachedMessage struct {
	PersonKey      string
	OccurrenceDate time.Time // date part only
	Text           string
	HistoricalFact string
	PromptID       string
	Fallback       bool
	Edited         bool
	GeneratedAt    time.Time
}

// FactRecord is one append-only entry of fact usage: which historical
// fact was told about a person in which year. Consulted on generation
// to avoid repeating facts within the lookback horizon.
type FactRecord struct {
	PersonKey string
	Year      int
	FactText  string
	UsedAt    time.Time
}

// SentRecord marks a greeting as delivered. Its absence is the sole
// signal that a send is still due for the occurrence date.
type SentRecord struct {
	PersonKey      string
	OccurrenceDate time.Time
	SentAt         time.Time
}

// DateKey renders an occurrence date in the canonical key format shared
// by every store implementation.
func DateKey(d time.Time) string {
	return d.Format("2006-01-02")
}
