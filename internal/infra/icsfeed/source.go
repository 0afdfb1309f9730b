package icsfeed

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
)

// Source downloads the birthday calendar over HTTP and extracts one
// entry per VEVENT. Only the month and day of DTSTART matter; the
// stored year is arbitrary. Events whose summary has no "Name - note"
// dash form are skipped, matching the feed's conventions.
type Source struct {
	url    string
	client *http.Client
}

func NewSource(url string) *Source {
	return &Source{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Source) Entries(ctx context.Context) ([]birthday.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar download returned status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/calendar") {
		return nil, fmt.Errorf("downloaded file is not an ICS file based on Content-Type header")
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		// Unfold continuation lines (RFC 5545 folding).
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calendar body: %w", err)
	}

	return ParseEvents(lines), nil
}

// ParseEvents walks unfolded ICS lines and collects birthday entries
// from the VEVENT blocks.
func ParseEvents(lines []string) []birthday.Entry {
	var entries []birthday.Entry
	var inEvent bool
	var summary, dtstart string

	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			summary, dtstart = "", ""
		case line == "END:VEVENT":
			inEvent = false
			if entry, ok := buildEntry(summary, dtstart); ok {
				entries = append(entries, entry)
			}
		case inEvent && strings.HasPrefix(line, "SUMMARY"):
			summary = valuePart(line)
		case inEvent && strings.HasPrefix(line, "DTSTART"):
			dtstart = valuePart(line)
		}
	}
	return entries
}

// valuePart strips the property name and any parameters:
// "DTSTART;VALUE=DATE:19900105" -> "19900105".
func valuePart(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return ""
	}
	return line[idx+1:]
}

func buildEntry(summary, dtstart string) (birthday.Entry, bool) {
	name := birthday.DisplayNameFromSummary(summary)
	if name == "" || len(dtstart) < 8 {
		return birthday.Entry{}, false
	}
	month, err1 := strconv.Atoi(dtstart[4:6])
	day, err2 := strconv.Atoi(dtstart[6:8])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return birthday.Entry{}, false
	}
	return birthday.Entry{
		DisplayName: name,
		Month:       time.Month(month),
		Day:         day,
		Summary:     summary,
	}, true
}
