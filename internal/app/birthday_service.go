// internal/app/birthday_service.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/calendar"
	"birthday_notification_bot/internal/domain/chat"
	"birthday_notification_bot/internal/domain/directory"
	"birthday_notification_bot/internal/domain/generator"
	"birthday_notification_bot/internal/domain/message"
	"birthday_notification_bot/internal/domain/prompt"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FallbackText is the deterministic greeting used when AI generation
// fails or no generator is configured.
const FallbackText = "🎉 Happy Birthday %s! 🎂 Wishing you a fantastic day filled with joy and celebration!"

var ErrNotInWindow = fmt.Errorf("person/date is not in the current occurrence window")

// WindowEntry is one row of the current occurrence window as exposed to
// the dashboard: the occurrence, its validation outcome, and the cached
// message if one exists.
type WindowEntry struct {
	Occurrence birthday.Occurrence
	Validation directory.ValidationResult
	Message    *message.CachedMessage
}

// Options carries the tunables for the service.
type Options struct {
	WindowDays        int
	FactLookbackYears int
	Location          *time.Location
	// Now is overridable for tests; defaults to time.Now in Location.
	Now func() time.Time
}

// BirthdayService owns the three shared stores (message cache, fact
// history, sent ledger) plus the prompt versions, and implements the
// refresh cycle, the delivery run, and the four dashboard mutations.
//
// One coarse mutex wraps every read-then-write sequence, so a dashboard
// regenerate cannot be clobbered by a concurrent scheduler refresh and
// vice versa. External calls (generation, delivery, lookups) are the
// only suspension points and happen under the lock; at dashboard-scale
// request volume that serialization is the intended behavior.
type BirthdayService struct {
	calendarSource *calendar.CachingSource
	validator      directory.Validator
	gen            generator.Generator // nil means every generation falls back
	chatClient     chat.Client
	messages       message.Repository
	facts          message.FactHistory
	ledger         message.SentLedger
	prompts        prompt.Repository
	logger         *logrus.Logger
	opts           Options

	mu     sync.Mutex
	window []WindowEntry // snapshot from the last refresh
}

func NewBirthdayService(
	calendarSource *calendar.CachingSource,
	validator directory.Validator,
	gen generator.Generator,
	chatClient chat.Client,
	messages message.Repository,
	facts message.FactHistory,
	ledger message.SentLedger,
	prompts prompt.Repository,
	logger *logrus.Logger,
	opts Options,
) *BirthdayService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().In(opts.Location) }
	}
	return &BirthdayService{
		calendarSource: calendarSource,
		validator:      validator,
		gen:            gen,
		chatClient:     chatClient,
		messages:       messages,
		facts:          facts,
		ledger:         ledger,
		prompts:        prompts,
		logger:         logger,
		opts:           opts,
	}
}

// EnsureDefaultPrompt seeds the prompt store with the default template
// when no active template exists yet. Called once at startup.
func (s *BirthdayService) EnsureDefaultPrompt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.prompts.GetActive(ctx)
	if err == nil {
		return nil
	}
	if err != idb.ErrPromptNotFound {
		return fmt.Errorf("failed to check active prompt: %w", err)
	}

	t := &prompt.Template{
		ID:          uuid.NewString(),
		Text:        prompt.DefaultTemplate,
		Description: "Default birthday prompt",
		CreatedAt:   s.opts.Now(),
		Active:      true,
	}
	if err := s.prompts.Create(ctx, t); err != nil {
		return fmt.Errorf("failed to seed default prompt: %w", err)
	}
	s.logger.Infof("Seeded default prompt template (ID: %s)", t.ID)
	return nil
}

// Refresh runs one full cycle: normalize the calendar into the
// occurrence window, validate each person once, and reuse, regenerate,
// or fall back per cached message. Recomputation merges against the
// existing cache; it never blindly replaces it.
func (s *BirthdayService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := birthday.Midnight(s.opts.Now())
	s.logger.Infof("Starting refresh cycle for %s (window: %d days)", today.Format("2006-01-02"), s.opts.WindowDays)

	entries, err := s.calendarSource.Entries(ctx)
	if err != nil {
		return fmt.Errorf("calendar fetch failed with no cached result: %w", err)
	}

	activePrompt, err := s.prompts.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active prompt: %w", err)
	}

	occurrences := birthday.UpcomingOccurrences(entries, today, s.opts.WindowDays)
	s.logger.Infof("Found %d occurrences in the window.", len(occurrences))

	// One lookup per person per cycle; results live only for this
	// refresh.
	validations := directory.NewCache(s.validator)

	window := make([]WindowEntry, 0, len(occurrences))
	for _, occ := range occurrences {
		entry := WindowEntry{Occurrence: occ}
		entry.Validation = validations.Validate(ctx, occ.PersonKey, occ.DisplayName)
		if !entry.Validation.Valid {
			s.logger.Warnf("Skipping message preparation for %s: valid=false, reason=%s", occ.PersonKey, entry.Validation.Reason)
			window = append(window, entry)
			continue
		}

		msg, err := s.prepareMessage(ctx, occ, activePrompt, false)
		if err != nil {
			// Per-person failure never aborts the cycle.
			s.logger.Errorf("Failed to prepare message for %s on %s: %v", occ.PersonKey, message.DateKey(occ.Date), err)
			window = append(window, entry)
			continue
		}
		entry.Message = msg
		window = append(window, entry)
	}

	s.window = window
	s.logger.Infof("Refresh cycle complete: %d window entries.", len(window))
	return nil
}

// prepareMessage applies the reuse/regenerate decision for one window
// entry and returns the resulting cached message. force skips the
// prompt-id check (dashboard regenerate).
func (s *BirthdayService) prepareMessage(ctx context.Context, occ birthday.Occurrence, activePrompt *prompt.Template, force bool) (*message.CachedMessage, error) {
	existing, err := s.messages.Get(ctx, occ.PersonKey, occ.Date)
	if err != nil && err != idb.ErrMessageNotFound {
		return nil, fmt.Errorf("failed to read cached message: %w", err)
	}

	if existing != nil && !force {
		switch {
		case existing.Fallback:
			// A fallback is always eligible for regeneration.
		case existing.Edited:
			return existing, nil
		case existing.PromptID == activePrompt.ID:
			return existing, nil
		}
	}
	if existing != nil && force && existing.Edited {
		// Explicit regenerate overrides even a hand edit.
		s.logger.Infof("Regenerating hand-edited message for %s on %s", occ.PersonKey, message.DateKey(occ.Date))
	}

	return s.generate(ctx, occ, activePrompt)
}

// generate calls the AI collaborator with the facts already used for
// this person excluded, stores the result, and appends the new fact to
// history. A failed generation stores the deterministic fallback and
// consumes no historical fact.
func (s *BirthdayService) generate(ctx context.Context, occ birthday.Occurrence, activePrompt *prompt.Template) (*message.CachedMessage, error) {
	now := s.opts.Now()
	sinceYear := occ.Date.Year() - s.opts.FactLookbackYears
	records, err := s.facts.ListSince(ctx, occ.PersonKey, sinceYear)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact history: %w", err)
	}
	excluded := make([]string, 0, len(records))
	for _, rec := range records {
		excluded = append(excluded, rec.FactText)
	}

	var result *generator.Result
	if s.gen != nil {
		result, err = s.gen.Generate(ctx, generator.Request{
			PersonKey:     occ.PersonKey,
			DisplayName:   occ.DisplayName,
			Date:          occ.Date,
			Template:      activePrompt.Render(occ.DisplayName, occ.Date),
			ExcludedFacts: excluded,
		})
		if err != nil {
			s.logger.Errorf("Generation failed for %s, storing fallback: %v", occ.PersonKey, err)
			result = nil
		}
	}

	msg := &message.CachedMessage{
		PersonKey:      occ.PersonKey,
		OccurrenceDate: occ.Date,
		PromptID:       activePrompt.ID,
		GeneratedAt:    now,
	}
	if result == nil {
		msg.Text = fmt.Sprintf(FallbackText, occ.DisplayName)
		msg.Fallback = true
	} else {
		msg.Text = result.Text
		msg.HistoricalFact = result.HistoricalFact
	}

	if err := s.messages.Put(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store cached message: %w", err)
	}

	if !msg.Fallback && msg.HistoricalFact != "" {
		rec := &message.FactRecord{
			PersonKey: occ.PersonKey,
			Year:      occ.Date.Year(),
			FactText:  msg.HistoricalFact,
			UsedAt:    now,
		}
		if err := s.facts.Append(ctx, rec); err != nil {
			s.logger.Errorf("Failed to append fact record for %s: %v", occ.PersonKey, err)
		}
	}

	s.logger.Infof("Stored message for %s on %s (fallback=%t)", occ.PersonKey, message.DateKey(occ.Date), msg.Fallback)
	return msg, nil
}

// Deliver sends every due message for today's local date: valid entry,
// cached message present, no sent record yet. The sent record is
// written only after a successful send acknowledgment, so a crash
// between send and record risks a duplicate rather than a missed
// birthday. Per-person failures never block the rest.
func (s *BirthdayService) Deliver(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := birthday.Midnight(s.opts.Now())
	s.logger.Infof("Starting delivery run for %s", today.Format("2006-01-02"))

	sent := 0
	for _, entry := range s.window {
		if !entry.Occurrence.Date.Equal(today) {
			continue
		}
		if !entry.Validation.Valid {
			s.logger.Infof("Skipping delivery for %s: valid=false, reason=%s", entry.Occurrence.PersonKey, entry.Validation.Reason)
			continue
		}
		if entry.Message == nil {
			s.logger.Warnf("Skipping delivery for %s: no cached message", entry.Occurrence.PersonKey)
			continue
		}

		key := entry.Occurrence.PersonKey
		_, err := s.ledger.Get(ctx, key, today)
		if err == nil {
			s.logger.Debugf("Skipping delivery for %s: already sent today.", key)
			continue
		}
		if err != idb.ErrSentRecordNotFound {
			s.logger.Errorf("Failed to check sent ledger for %s: %v", key, err)
			continue
		}

		if err := s.chatClient.Send(ctx, entry.Message.Text); err != nil {
			s.logger.Errorf("Failed to deliver message for %s: %v", key, err)
			continue
		}
		rec := &message.SentRecord{PersonKey: key, OccurrenceDate: today, SentAt: s.opts.Now()}
		if err := s.ledger.Record(ctx, rec); err != nil {
			// The message went out; a missing record risks one
			// duplicate on the next run.
			s.logger.Errorf("Sent message for %s but failed to record it: %v", key, err)
			continue
		}
		sent++
		s.logger.Infof("Delivered birthday message for %s.", key)
	}

	s.logger.Infof("Delivery run complete: %d messages sent.", sent)
	return nil
}

// Regenerate force-invalidates one cached message and re-runs
// generation for that entry only, ignoring prompt-id matching and any
// hand edit.
func (s *BirthdayService) Regenerate(ctx context.Context, personKey string, date time.Time) (*message.CachedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.windowIndex(personKey, date)
	if idx < 0 {
		return nil, ErrNotInWindow
	}
	entry := &s.window[idx]
	if !entry.Validation.Valid {
		return nil, fmt.Errorf("cannot regenerate for %s: validation failed (%s)", personKey, entry.Validation.Reason)
	}

	activePrompt, err := s.prompts.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active prompt: %w", err)
	}

	msg, err := s.prepareMessage(ctx, entry.Occurrence, activePrompt, true)
	if err != nil {
		return nil, err
	}
	entry.Message = msg
	return msg, nil
}

// Edit overwrites the message text directly, bypassing the AI
// collaborator. Edited messages survive refreshes and prompt switches
// untouched. The target must be cached already or present in the
// window; editing an unknown key would only create an orphan cache
// entry no refresh or delivery ever touches.
func (s *BirthdayService) Edit(ctx context.Context, personKey string, date time.Time, text string) (*message.CachedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date = birthday.Midnight(date)
	msg, err := s.messages.Get(ctx, personKey, date)
	if err == idb.ErrMessageNotFound {
		if s.windowIndex(personKey, date) < 0 {
			return nil, ErrNotInWindow
		}
		msg = &message.CachedMessage{PersonKey: personKey, OccurrenceDate: date}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read cached message: %w", err)
	}

	msg.Text = text
	msg.Edited = true
	msg.Fallback = false
	msg.GeneratedAt = s.opts.Now()
	if err := s.messages.Put(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store edited message: %w", err)
	}

	if idx := s.windowIndex(personKey, date); idx >= 0 {
		s.window[idx].Message = msg
	}
	s.logger.Infof("Stored hand-edited message for %s on %s", personKey, message.DateKey(date))
	return msg, nil
}

// ClearSent deletes the sent record for one entry, allowing delivery to
// be re-tested without waiting a year.
func (s *BirthdayService) ClearSent(ctx context.Context, personKey string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Clear(ctx, personKey, birthday.Midnight(date)); err != nil {
		return fmt.Errorf("failed to clear sent record: %w", err)
	}
	s.logger.Infof("Cleared sent record for %s on %s", personKey, message.DateKey(date))
	return nil
}

// ActivatePrompt atomically switches the active template and drops
// every non-edited cached message, so the next refresh regenerates them
// lazily under the new prompt. Nothing is regenerated synchronously
// here; the switch stays fast.
func (s *BirthdayService) ActivatePrompt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activatePromptLocked(ctx, id)
}

func (s *BirthdayService) activatePromptLocked(ctx context.Context, id string) error {
	if err := s.prompts.Activate(ctx, id); err != nil {
		return fmt.Errorf("failed to activate prompt %s: %w", id, err)
	}
	if err := s.messages.DeleteNonEdited(ctx); err != nil {
		return fmt.Errorf("failed to invalidate cached messages: %w", err)
	}
	for i := range s.window {
		if s.window[i].Message != nil && !s.window[i].Message.Edited {
			s.window[i].Message = nil
		}
	}
	s.logger.Infof("Activated prompt %s and invalidated non-edited cached messages.", id)
	return nil
}

// CreatePrompt stores a new template version. When activate is set the
// new version becomes active immediately, with the same cache
// invalidation as ActivatePrompt.
func (s *BirthdayService) CreatePrompt(ctx context.Context, text, description string, activate bool) (*prompt.Template, error) {
	if err := prompt.ValidateText(text); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &prompt.Template{
		ID:          uuid.NewString(),
		Text:        text,
		Description: description,
		CreatedAt:   s.opts.Now(),
	}
	if err := s.prompts.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create prompt template: %w", err)
	}
	if activate {
		if err := s.activatePromptLocked(ctx, t.ID); err != nil {
			return nil, err
		}
		t.Active = true
	}
	s.logger.Infof("Created prompt template %s (activate=%t)", t.ID, activate)
	return t, nil
}

// Prompts returns the full template history.
func (s *BirthdayService) Prompts(ctx context.Context) ([]*prompt.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts.List(ctx)
}

// PurgeFactHistory removes every fact record for one person. This is an
// explicit administrative operation, the only path that deletes from
// the append-only history.
func (s *BirthdayService) PurgeFactHistory(ctx context.Context, personKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.facts.PurgePerson(ctx, personKey); err != nil {
		return fmt.Errorf("failed to purge fact history for %s: %w", personKey, err)
	}
	s.logger.Infof("Purged fact history for %s", personKey)
	return nil
}

// Window returns a copy of the current occurrence window snapshot.
func (s *BirthdayService) Window() []WindowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WindowEntry, len(s.window))
	copy(out, s.window)
	return out
}

// ServiceStatus is the dashboard status summary.
type ServiceStatus struct {
	CalendarStale       bool      `json:"calendar_stale"`
	CalendarLastSuccess time.Time `json:"calendar_last_success"`
	WindowDays          int       `json:"window_days"`
	WindowSize          int       `json:"window_size"`
	GeneratorConfigured bool      `json:"generator_configured"`
}

func (s *BirthdayService) Status() ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ServiceStatus{
		CalendarStale:       s.calendarSource.Stale(),
		CalendarLastSuccess: s.calendarSource.LastSuccess(),
		WindowDays:          s.opts.WindowDays,
		WindowSize:          len(s.window),
		GeneratorConfigured: s.gen != nil,
	}
}

func (s *BirthdayService) windowIndex(personKey string, date time.Time) int {
	// Dates are compared by calendar day, not instant: API callers
	// parse dates in UTC while the window carries the configured
	// location.
	key := message.DateKey(date)
	for i := range s.window {
		if s.window[i].Occurrence.PersonKey == personKey && message.DateKey(s.window[i].Occurrence.Date) == key {
			return i
		}
	}
	return -1
}
