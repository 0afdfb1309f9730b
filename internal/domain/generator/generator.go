package generator

import (
	"context"
	"time"
)

// Request carries everything the AI collaborator needs to compose one
// greeting. ExcludedFacts lists historical facts already used for this
// person within the lookback horizon; the generator must avoid them.
type Request struct {
	PersonKey     string
	DisplayName   string
	Date          time.Time
	Template      string // rendered prompt text
	ExcludedFacts []string
}

// Result is a successful generation.
type Result struct {
	Text           string
	HistoricalFact string
}

// Generator is the external AI text-completion collaborator. Any error
// (timeout, quota, malformed response) is treated as a generation
// failure and answered with a fallback message; it is never retried
// inline.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
