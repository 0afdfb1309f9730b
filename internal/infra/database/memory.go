// In-memory store implementations. Used when DATABASE_URL is not
// configured (the service then holds its state for the lifetime of the
// process, matching the original deployment's single-node setup) and as
// the substrate for tests.
package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"birthday_notification_bot/internal/domain/message"
	"birthday_notification_bot/internal/domain/prompt"
)

func messageKey(personKey string, date time.Time) string {
	return personKey + "_" + message.DateKey(date)
}

// --- Cached messages ---

type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string]message.CachedMessage
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string]message.CachedMessage)}
}

func (r *MemoryMessageRepository) Get(_ context.Context, personKey string, date time.Time) (*message.CachedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageKey(personKey, date)]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &m, nil
}

func (r *MemoryMessageRepository) Put(_ context.Context, msg *message.CachedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[messageKey(msg.PersonKey, msg.OccurrenceDate)] = *msg
	return nil
}

func (r *MemoryMessageRepository) Delete(_ context.Context, personKey string, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, messageKey(personKey, date))
	return nil
}

func (r *MemoryMessageRepository) DeleteNonEdited(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, m := range r.messages {
		if !m.Edited {
			delete(r.messages, k)
		}
	}
	return nil
}

func (r *MemoryMessageRepository) List(_ context.Context) ([]*message.CachedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*message.CachedMessage, 0, len(r.messages))
	for _, m := range r.messages {
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurrenceDate.Equal(out[j].OccurrenceDate) {
			return out[i].PersonKey < out[j].PersonKey
		}
		return out[i].OccurrenceDate.Before(out[j].OccurrenceDate)
	})
	return out, nil
}

// --- Fact history ---

type MemoryFactHistory struct {
	mu      sync.Mutex
	records []message.FactRecord
}

func NewMemoryFactHistory() *MemoryFactHistory {
	return &MemoryFactHistory{}
}

func (h *MemoryFactHistory) Append(_ context.Context, rec *message.FactRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
	return nil
}

func (h *MemoryFactHistory) ListSince(_ context.Context, personKey string, sinceYear int) ([]*message.FactRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*message.FactRecord
	for i := range h.records {
		rec := h.records[i]
		if rec.PersonKey == personKey && rec.Year >= sinceYear {
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (h *MemoryFactHistory) PurgePerson(_ context.Context, personKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.records[:0]
	for _, rec := range h.records {
		if rec.PersonKey != personKey {
			kept = append(kept, rec)
		}
	}
	h.records = kept
	return nil
}

// --- Sent ledger ---

type MemorySentLedger struct {
	mu   sync.Mutex
	sent map[string]message.SentRecord
}

func NewMemorySentLedger() *MemorySentLedger {
	return &MemorySentLedger{sent: make(map[string]message.SentRecord)}
}

func (l *MemorySentLedger) Get(_ context.Context, personKey string, date time.Time) (*message.SentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.sent[messageKey(personKey, date)]
	if !ok {
		return nil, ErrSentRecordNotFound
	}
	return &rec, nil
}

func (l *MemorySentLedger) Record(_ context.Context, rec *message.SentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent[messageKey(rec.PersonKey, rec.OccurrenceDate)] = *rec
	return nil
}

func (l *MemorySentLedger) Clear(_ context.Context, personKey string, date time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sent, messageKey(personKey, date))
	return nil
}

// --- Prompt templates ---

type MemoryPromptRepository struct {
	mu        sync.Mutex
	templates []prompt.Template // ordered by creation
}

func NewMemoryPromptRepository() *MemoryPromptRepository {
	return &MemoryPromptRepository{}
}

func (r *MemoryPromptRepository) Create(_ context.Context, t *prompt.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Active {
		for i := range r.templates {
			r.templates[i].Active = false
		}
	}
	r.templates = append(r.templates, *t)
	return nil
}

func (r *MemoryPromptRepository) GetActive(_ context.Context) (*prompt.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.templates {
		if r.templates[i].Active {
			t := r.templates[i]
			return &t, nil
		}
	}
	return nil, ErrPromptNotFound
}

func (r *MemoryPromptRepository) Get(_ context.Context, id string) (*prompt.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.templates {
		if r.templates[i].ID == id {
			t := r.templates[i]
			return &t, nil
		}
	}
	return nil, ErrPromptNotFound
}

func (r *MemoryPromptRepository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := -1
	for i := range r.templates {
		if r.templates[i].ID == id {
			target = i
			break
		}
	}
	if target < 0 {
		return ErrPromptNotFound
	}
	for i := range r.templates {
		r.templates[i].Active = i == target
	}
	return nil
}

func (r *MemoryPromptRepository) List(_ context.Context) ([]*prompt.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*prompt.Template, 0, len(r.templates))
	for i := range r.templates {
		t := r.templates[i]
		out = append(out, &t)
	}
	return out, nil
}
