package calendar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/birthday"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	entries []birthday.Entry
	err     error
}

func (s *scriptedSource) Entries(context.Context) ([]birthday.Entry, error) {
	return s.entries, s.err
}

func TestCachingSource_ServesLastGoodResultOnFailure(t *testing.T) {
	inner := &scriptedSource{entries: []birthday.Entry{{DisplayName: "John Doe", Month: time.May, Day: 3}}}
	source := NewCachingSource(inner)

	ctx := context.Background()
	entries, err := source.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, source.Stale())

	inner.err = fmt.Errorf("feed unavailable")
	entries, err = source.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, source.Stale())

	inner.err = nil
	_, err = source.Entries(ctx)
	require.NoError(t, err)
	assert.False(t, source.Stale())
}

func TestCachingSource_ErrorsWhenNoResultYet(t *testing.T) {
	source := NewCachingSource(&scriptedSource{err: fmt.Errorf("feed unavailable")})
	_, err := source.Entries(context.Background())
	assert.Error(t, err)
}
