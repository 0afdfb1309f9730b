package directory

import (
	"context"
	"time"
)

// ReasonLookupError marks a validation that failed because the
// directory lookup itself errored, as opposed to the person genuinely
// not being found.
const ReasonLookupError = "lookup_error"

const ReasonNotFound = "not_found"

// Validator checks whether a display name resolves to a real directory
// entry.
type Validator interface {
	Validate(ctx context.Context, displayName string) (bool, error)
}

// ValidationResult is the outcome of one directory lookup. It lives for
// a single refresh cycle and is never persisted.
type ValidationResult struct {
	PersonKey string
	Valid     bool
	Reason    string
	CheckedAt time.Time
}

// Cache memoizes directory lookups for one refresh cycle so each person
// in the window is validated once per refresh rather than once per
// request. A lookup error for one person records valid=false and never
// fails the cycle for anyone else.
//
// Cache is not safe for concurrent use on its own; the refresh cycle
// that owns it runs under the service lock.
type Cache struct {
	validator Validator
	results   map[string]ValidationResult
}

func NewCache(validator Validator) *Cache {
	return &Cache{
		validator: validator,
		results:   make(map[string]ValidationResult),
	}
}

// Validate returns the memoized result for personKey, performing the
// lookup on first sight.
func (c *Cache) Validate(ctx context.Context, personKey, displayName string) ValidationResult {
	if result, ok := c.results[personKey]; ok {
		return result
	}

	result := ValidationResult{PersonKey: personKey, CheckedAt: time.Now()}
	valid, err := c.validator.Validate(ctx, displayName)
	switch {
	case err != nil:
		result.Valid = false
		result.Reason = ReasonLookupError
	case !valid:
		result.Valid = false
		result.Reason = ReasonNotFound
	default:
		result.Valid = true
	}

	c.results[personKey] = result
	return result
}

// Results returns every result recorded this cycle.
func (c *Cache) Results() map[string]ValidationResult {
	out := make(map[string]ValidationResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}
