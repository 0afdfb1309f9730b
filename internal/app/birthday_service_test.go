package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/calendar"
	"birthday_notification_bot/internal/domain/directory"
	"birthday_notification_bot/internal/domain/generator"
	"birthday_notification_bot/internal/domain/message"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	entries []birthday.Entry
	err     error
}

func (c *fakeCalendar) Entries(context.Context) ([]birthday.Entry, error) {
	return c.entries, c.err
}

type fakeValidator struct {
	notFound map[string]bool
	fail     map[string]bool
}

func (v *fakeValidator) Validate(_ context.Context, displayName string) (bool, error) {
	if v.fail[displayName] {
		return false, fmt.Errorf("directory unreachable")
	}
	return !v.notFound[displayName], nil
}

type fakeGenerator struct {
	fail     bool
	requests []generator.Request
	counter  int
}

func (g *fakeGenerator) Generate(_ context.Context, req generator.Request) (*generator.Result, error) {
	g.requests = append(g.requests, req)
	if g.fail {
		return nil, fmt.Errorf("quota exceeded")
	}
	g.counter++
	return &generator.Result{
		Text:           fmt.Sprintf("Great things happened and also %s was born. Happy Birthday %s!", req.DisplayName, req.DisplayName),
		HistoricalFact: fmt.Sprintf("fact-%d for %s", g.counter, req.PersonKey),
	}, nil
}

type fakeChat struct {
	fail bool
	sent []string
}

func (c *fakeChat) Send(_ context.Context, text string) error {
	if c.fail {
		return fmt.Errorf("webhook returned status 500")
	}
	c.sent = append(c.sent, text)
	return nil
}

type fixture struct {
	svc      *BirthdayService
	cal      *fakeCalendar
	val      *fakeValidator
	gen      *fakeGenerator
	chat     *fakeChat
	messages *idb.MemoryMessageRepository
	facts    *idb.MemoryFactHistory
	ledger   *idb.MemorySentLedger
	prompts  *idb.MemoryPromptRepository
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cal: &fakeCalendar{entries: []birthday.Entry{
			{DisplayName: "A Person", Month: time.January, Day: 5, Summary: "A Person - birthday"},
			{DisplayName: "Today Person", Month: time.January, Day: 1, Summary: "Today Person - birthday"},
		}},
		val:      &fakeValidator{notFound: map[string]bool{}, fail: map[string]bool{}},
		gen:      &fakeGenerator{},
		chat:     &fakeChat{},
		messages: idb.NewMemoryMessageRepository(),
		facts:    idb.NewMemoryFactHistory(),
		ledger:   idb.NewMemorySentLedger(),
		prompts:  idb.NewMemoryPromptRepository(),
		now:      time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC),
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f.svc = NewBirthdayService(
		calendar.NewCachingSource(f.cal),
		f.val, f.gen, f.chat,
		f.messages, f.facts, f.ledger, f.prompts,
		log,
		Options{
			WindowDays:        21,
			FactLookbackYears: 5,
			Location:          time.UTC,
			Now:               func() time.Time { return f.now },
		},
	)
	require.NoError(t, f.svc.EnsureDefaultPrompt(context.Background()))
	return f
}

func messageFact(personKey string, year int, fact string) *message.FactRecord {
	return &message.FactRecord{
		PersonKey: personKey,
		Year:      year,
		FactText:  fact,
		UsedAt:    time.Date(year, time.January, 5, 7, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) activePromptID(t *testing.T) string {
	t.Helper()
	active, err := f.prompts.GetActive(context.Background())
	require.NoError(t, err)
	return active.ID
}

func windowEntry(t *testing.T, entries []WindowEntry, personKey string) WindowEntry {
	t.Helper()
	for _, e := range entries {
		if e.Occurrence.PersonKey == personKey {
			return e
		}
	}
	t.Fatalf("person %s not in window", personKey)
	return WindowEntry{}
}

func TestRefresh_GeneratesMessagesForWindow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Refresh(context.Background()))

	window := f.svc.Window()
	require.Len(t, window, 2)

	entry := windowEntry(t, window, "a.person")
	assert.True(t, entry.Validation.Valid)
	require.NotNil(t, entry.Message)
	assert.Equal(t, time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), entry.Occurrence.Date)
	assert.False(t, entry.Message.Fallback)
	assert.Equal(t, f.activePromptID(t), entry.Message.PromptID)
}

func TestRefresh_LookupErrorSkipsGenerationAndDelivery(t *testing.T) {
	f := newFixture(t)
	f.val.fail["A Person"] = true
	require.NoError(t, f.svc.Refresh(context.Background()))

	entry := windowEntry(t, f.svc.Window(), "a.person")
	assert.False(t, entry.Validation.Valid)
	assert.Equal(t, directory.ReasonLookupError, entry.Validation.Reason)
	assert.Nil(t, entry.Message)

	_, err := f.messages.Get(context.Background(), "a.person", entry.Occurrence.Date)
	assert.Equal(t, idb.ErrMessageNotFound, err)

	// The other person's generation is unaffected.
	other := windowEntry(t, f.svc.Window(), "today.person")
	assert.NotNil(t, other.Message)
}

func TestRefresh_ReusesCachedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))
	generated := len(f.gen.requests)

	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, generated, len(f.gen.requests), "second refresh must reuse cached messages")
}

func TestRefresh_FallbackOnGeneratorFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gen.fail = true
	require.NoError(t, f.svc.Refresh(ctx))

	entry := windowEntry(t, f.svc.Window(), "a.person")
	require.NotNil(t, entry.Message)
	assert.True(t, entry.Message.Fallback)
	assert.Equal(t, fmt.Sprintf(FallbackText, "A Person"), entry.Message.Text)

	// A fallback consumes no historical fact.
	facts, err := f.facts.ListSince(ctx, "a.person", 0)
	require.NoError(t, err)
	assert.Empty(t, facts)

	// Fallbacks stay eligible: the next refresh regenerates once the
	// generator recovers.
	f.gen.fail = false
	require.NoError(t, f.svc.Refresh(ctx))
	entry = windowEntry(t, f.svc.Window(), "a.person")
	assert.False(t, entry.Message.Fallback)

	facts, err = f.facts.ListSince(ctx, "a.person", 0)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestGenerate_ExcludesFactsWithinLookback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for year, fact := range map[int]string{2022: "fact 2022", 2023: "fact 2023", 2024: "fact 2024"} {
		require.NoError(t, f.facts.Append(ctx, messageFact("a.person", year, fact)))
	}
	require.NoError(t, f.svc.Refresh(ctx))

	var req *generator.Request
	for i := range f.gen.requests {
		if f.gen.requests[i].PersonKey == "a.person" {
			req = &f.gen.requests[i]
		}
	}
	require.NotNil(t, req)
	assert.ElementsMatch(t, []string{"fact 2022", "fact 2023", "fact 2024"}, req.ExcludedFacts)
}

func TestGenerate_LookbackHorizonIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 2019 is outside the 5-year horizon for a 2025 occurrence.
	require.NoError(t, f.facts.Append(ctx, messageFact("a.person", 2019, "ancient fact")))
	require.NoError(t, f.facts.Append(ctx, messageFact("a.person", 2021, "recent fact")))
	require.NoError(t, f.svc.Refresh(ctx))

	var excluded []string
	for _, req := range f.gen.requests {
		if req.PersonKey == "a.person" {
			excluded = req.ExcludedFacts
		}
	}
	assert.Equal(t, []string{"recent fact"}, excluded)
}

func TestDeliver_SendsDueMessagesOnceAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	require.NoError(t, f.svc.Deliver(ctx))
	require.Len(t, f.chat.sent, 1, "only today's occurrence is due")

	rec, err := f.ledger.Get(ctx, "today.person", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "today.person", rec.PersonKey)

	// Second run on the same date is a no-op.
	require.NoError(t, f.svc.Deliver(ctx))
	assert.Len(t, f.chat.sent, 1)
}

func TestDeliver_NoRecordOnSendFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	f.chat.fail = true
	require.NoError(t, f.svc.Deliver(ctx))
	_, err := f.ledger.Get(ctx, "today.person", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, idb.ErrSentRecordNotFound, err)

	// The next run retries the send.
	f.chat.fail = false
	require.NoError(t, f.svc.Deliver(ctx))
	assert.Len(t, f.chat.sent, 1)
}

func TestClearSent_AllowsResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Refresh(ctx))
	require.NoError(t, f.svc.Deliver(ctx))
	require.Len(t, f.chat.sent, 1)

	require.NoError(t, f.svc.ClearSent(ctx, "today.person", today))
	require.NoError(t, f.svc.Deliver(ctx))
	assert.Len(t, f.chat.sent, 2)
}

func TestRegenerate_TouchesOnlyItsOwnKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	before := windowEntry(t, f.svc.Window(), "today.person").Message.Text

	msg, err := f.svc.Regenerate(ctx, "a.person", time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "a.person", msg.PersonKey)

	after := windowEntry(t, f.svc.Window(), "today.person").Message.Text
	assert.Equal(t, before, after, "regenerating one key must not alter another")
}

func TestRegenerate_UnknownEntry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Refresh(context.Background()))

	_, err := f.svc.Regenerate(context.Background(), "ghost", time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ErrNotInWindow, err)
}

func TestActivatePrompt_StaleMessagesRegeneratedOnRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))
	oldID := f.activePromptID(t)

	newPrompt, err := f.svc.CreatePrompt(ctx, "New style for {employee_name} on {birthday_date}", "v2", true)
	require.NoError(t, err)
	require.NotEqual(t, oldID, newPrompt.ID)

	// The switch itself only invalidates; regeneration is lazy.
	msgs, err := f.messages.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, f.svc.Refresh(ctx))
	for _, entry := range f.svc.Window() {
		require.NotNil(t, entry.Message)
		assert.Equal(t, newPrompt.ID, entry.Message.PromptID)
	}
}

func TestEdit_SurvivesPromptSwitchAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.Refresh(ctx))

	edited, err := f.svc.Edit(ctx, "a.person", date, "custom text")
	require.NoError(t, err)
	assert.True(t, edited.Edited)

	_, err = f.svc.CreatePrompt(ctx, "Another {employee_name} {birthday_date}", "v2", true)
	require.NoError(t, err)
	require.NoError(t, f.svc.Refresh(ctx))

	msg, err := f.messages.Get(ctx, "a.person", date)
	require.NoError(t, err)
	assert.Equal(t, "custom text", msg.Text)
	assert.True(t, msg.Edited)
}

func TestEdit_UnknownEntryLeavesNoOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	_, err := f.svc.Edit(ctx, "ghost", time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), "text")
	assert.Equal(t, ErrNotInWindow, err)

	msgs, err := f.messages.List(ctx)
	require.NoError(t, err)
	for _, msg := range msgs {
		assert.NotEqual(t, "ghost", msg.PersonKey)
	}
}

func TestEdit_UncachedWindowEntryIsEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)

	// A lookup error leaves the entry in the window with no cached
	// message; a hand edit must still be possible for it.
	f.val.fail["A Person"] = true
	require.NoError(t, f.svc.Refresh(ctx))
	require.Nil(t, windowEntry(t, f.svc.Window(), "a.person").Message)

	edited, err := f.svc.Edit(ctx, "a.person", date, "hand-written greeting")
	require.NoError(t, err)
	assert.True(t, edited.Edited)

	msg, err := f.messages.Get(ctx, "a.person", date)
	require.NoError(t, err)
	assert.Equal(t, "hand-written greeting", msg.Text)
}

func TestRegenerate_OverridesHandEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.Refresh(ctx))

	_, err := f.svc.Edit(ctx, "a.person", date, "custom text")
	require.NoError(t, err)

	msg, err := f.svc.Regenerate(ctx, "a.person", date)
	require.NoError(t, err)
	assert.NotEqual(t, "custom text", msg.Text)
	assert.False(t, msg.Edited)
}

func TestEnsureDefaultPrompt_SeedsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.EnsureDefaultPrompt(context.Background()))

	prompts, err := f.prompts.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, prompts, 1)
	assert.True(t, prompts[0].Active)
}

func TestPurgeFactHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.facts.Append(ctx, messageFact("a.person", 2024, "a fact")))

	require.NoError(t, f.svc.PurgeFactHistory(ctx, "a.person"))
	facts, err := f.facts.ListSince(ctx, "a.person", 0)
	require.NoError(t, err)
	assert.Empty(t, facts)
}
