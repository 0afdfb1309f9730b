package birthday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPersonKey(t *testing.T) {
	assert.Equal(t, "john.doe", PersonKey("John Doe"))
	assert.Equal(t, "jane.van.dyke", PersonKey("Jane Van Dyke"))
	assert.Equal(t, "solo", PersonKey(" Solo "))
}

func TestDisplayNameFromSummary(t *testing.T) {
	assert.Equal(t, "Jane Roe", DisplayNameFromSummary("Jane Roe - birthday"))
	assert.Equal(t, "Jane Roe", DisplayNameFromSummary("Jane Roe -birthday"))
	assert.Equal(t, "", DisplayNameFromSummary("no separator here"))
}

func TestNextOccurrence_SameDayIncluded(t *testing.T) {
	today := date(2025, time.January, 5)
	assert.Equal(t, date(2025, time.January, 5), NextOccurrence(time.January, 5, today))
}

func TestNextOccurrence_PastDateRollsToNextYear(t *testing.T) {
	today := date(2025, time.January, 6)
	assert.Equal(t, date(2026, time.January, 5), NextOccurrence(time.January, 5, today))
}

func TestNextOccurrence_LeapDayOnNonLeapYear(t *testing.T) {
	today := date(2025, time.February, 1)
	assert.Equal(t, date(2025, time.February, 28), NextOccurrence(time.February, 29, today))

	// 2028 is a leap year; from March 2027 the next occurrence is the
	// real leap day.
	today = date(2027, time.March, 1)
	assert.Equal(t, date(2028, time.February, 29), NextOccurrence(time.February, 29, today))
}

func TestUpcomingOccurrences_YearBoundaryWindow(t *testing.T) {
	entries := []Entry{{DisplayName: "Dec Person", Month: time.December, Day: 30, Summary: "Dec Person - birthday"}}

	today := date(2024, time.December, 28)
	occ := UpcomingOccurrences(entries, today, 5)
	require.Len(t, occ, 1)
	assert.Equal(t, date(2024, time.December, 30), occ[0].Date)

	occ = UpcomingOccurrences(entries, today, 1)
	assert.Empty(t, occ)
}

func TestUpcomingOccurrences_NormalizesStoredYear(t *testing.T) {
	// Stored year 1990 is irrelevant; the occurrence lands in the
	// evaluation year.
	entries := []Entry{{DisplayName: "A Person", Month: time.January, Day: 5, Summary: "A Person - b"}}

	occ := UpcomingOccurrences(entries, date(2025, time.January, 1), 21)
	require.Len(t, occ, 1)
	assert.Equal(t, "a.person", occ[0].PersonKey)
	assert.Equal(t, date(2025, time.January, 5), occ[0].Date)
}

func TestUpcomingOccurrences_WindowEdges(t *testing.T) {
	entries := []Entry{
		{DisplayName: "On Edge", Month: time.January, Day: 22},
		{DisplayName: "Past Edge", Month: time.January, Day: 23},
	}
	occ := UpcomingOccurrences(entries, date(2025, time.January, 1), 21)
	require.Len(t, occ, 1)
	assert.Equal(t, "on.edge", occ[0].PersonKey)
}

func TestUpcomingOccurrences_SkipsEntriesWithoutName(t *testing.T) {
	entries := []Entry{{DisplayName: "", Month: time.January, Day: 2}}
	assert.Empty(t, UpcomingOccurrences(entries, date(2025, time.January, 1), 21))
}
