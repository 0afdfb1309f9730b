package directory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedValidator struct {
	found map[string]bool
	fail  map[string]bool
	calls int
}

func (v *scriptedValidator) Validate(_ context.Context, displayName string) (bool, error) {
	v.calls++
	if v.fail[displayName] {
		return false, fmt.Errorf("directory unreachable")
	}
	return v.found[displayName], nil
}

func TestCache_MemoizesOneLookupPerPerson(t *testing.T) {
	v := &scriptedValidator{found: map[string]bool{"John Doe": true}}
	cache := NewCache(v)

	ctx := context.Background()
	first := cache.Validate(ctx, "john.doe", "John Doe")
	second := cache.Validate(ctx, "john.doe", "John Doe")

	assert.Equal(t, 1, v.calls)
	assert.True(t, first.Valid)
	assert.Equal(t, first, second)
}

func TestCache_LookupErrorIsRecordedNotPropagated(t *testing.T) {
	v := &scriptedValidator{fail: map[string]bool{"A Person": true}, found: map[string]bool{"B Person": true}}
	cache := NewCache(v)

	ctx := context.Background()
	a := cache.Validate(ctx, "a.person", "A Person")
	b := cache.Validate(ctx, "b.person", "B Person")

	assert.False(t, a.Valid)
	assert.Equal(t, ReasonLookupError, a.Reason)
	// One person's lookup fault never blocks another's validation.
	assert.True(t, b.Valid)
}

func TestCache_NotFound(t *testing.T) {
	v := &scriptedValidator{}
	cache := NewCache(v)

	result := cache.Validate(context.Background(), "ghost", "Ghost")
	require.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}
