package birthday

import (
	"strings"
	"time"
)

// Entry is a raw calendar row: the stored year is arbitrary, only the
// month and day carry meaning.
type Entry struct {
	DisplayName string
	Month       time.Month
	Day         int
	Summary     string
}

// Occurrence is the next annual occurrence of a birthday inside the
// look-ahead window. PersonKey is the stable join key used by every
// other store; it is derived from the display name, never the raw
// summary string.
type Occurrence struct {
	PersonKey   string
	DisplayName string
	Date        time.Time // midnight in the evaluation location
	Summary     string
}

// PersonKey converts a display name to the directory uid form:
// spaces become dots, everything lowercased ("John Doe" -> "john.doe").
func PersonKey(displayName string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(displayName), " ", "."))
}

// DisplayNameFromSummary extracts the person's name from a calendar
// summary of the form "Jane Roe - birthday". Returns "" if the summary
// has no dash separator.
func DisplayNameFromSummary(summary string) string {
	idx := strings.Index(summary, "-")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(summary[:idx])
}

// NextOccurrence computes the next date on or after today with the
// given month and day. Feb 29 maps to Feb 28 in non-leap years.
func NextOccurrence(month time.Month, day int, today time.Time) time.Time {
	today = Midnight(today)
	for _, year := range []int{today.Year(), today.Year() + 1} {
		d := day
		if month == time.February && day == 29 && !isLeapYear(year) {
			d = 28
		}
		candidate := time.Date(year, month, d, 0, 0, 0, 0, today.Location())
		if !candidate.Before(today) {
			return candidate
		}
	}
	// Unreachable for valid month/day input.
	return time.Time{}
}

// UpcomingOccurrences returns the occurrences whose next annual date
// falls within [today, today+windowDays], inclusive. The window wraps
// across the year boundary: a Dec 29 birthday is upcoming from a Jan 3
// evaluation date of the following year only via NextOccurrence moving
// to the next Dec 29, so the wrap case is Dec birthdays seen from late
// Dec evaluation dates.
func UpcomingOccurrences(entries []Entry, today time.Time, windowDays int) []Occurrence {
	today = Midnight(today)
	horizon := today.AddDate(0, 0, windowDays)

	occurrences := make([]Occurrence, 0, len(entries))
	for _, e := range entries {
		if e.DisplayName == "" {
			continue
		}
		next := NextOccurrence(e.Month, e.Day, today)
		if next.After(horizon) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			PersonKey:   PersonKey(e.DisplayName),
			DisplayName: e.DisplayName,
			Date:        next,
			Summary:     e.Summary,
		})
	}
	return occurrences
}

// Midnight truncates t to the start of its calendar day, keeping the
// location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
