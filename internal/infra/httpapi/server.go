package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/message"
	"birthday_notification_bot/internal/infra/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Server exposes the dashboard API: read access to the occurrence
// window and prompt history, the four mutations, and the manual
// scheduler triggers.
type Server struct {
	svc    *app.BirthdayService
	sched  *scheduler.BirthdayScheduler
	logger *logrus.Logger
}

func NewServer(svc *app.BirthdayService, sched *scheduler.BirthdayScheduler, logger *logrus.Logger) *Server {
	return &Server{svc: svc, sched: sched, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/api/birthdays", s.handleBirthdays)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/regenerate-message", s.handleRegenerate)
	r.Post("/api/update-message", s.handleUpdateMessage)
	r.Post("/api/clear-sent", s.handleClearSent)
	r.Get("/api/prompts", s.handleListPrompts)
	r.Post("/api/prompts", s.handleCreatePrompt)
	r.Post("/api/prompts/activate", s.handleActivatePrompt)
	r.Post("/api/refresh", s.handleRefreshNow)
	r.Post("/api/send-now", s.handleSendNow)
	r.Delete("/api/fact-history/{personKey}", s.handlePurgeFacts)

	return r
}

type windowEvent struct {
	PersonKey      string `json:"person_key"`
	Name           string `json:"name"`
	Summary        string `json:"summary"`
	Date           string `json:"date"`
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	Message        string `json:"message,omitempty"`
	HistoricalFact string `json:"historical_fact,omitempty"`
	Fallback       bool   `json:"fallback"`
	Edited         bool   `json:"edited"`
}

type windowDay struct {
	Date      string        `json:"date"`
	DayOfWeek string        `json:"day_of_week"`
	Events    []windowEvent `json:"events"`
}

func (s *Server) handleBirthdays(w http.ResponseWriter, r *http.Request) {
	days := make(map[string]*windowDay)
	for _, entry := range s.svc.Window() {
		dateKey := message.DateKey(entry.Occurrence.Date)
		day, ok := days[dateKey]
		if !ok {
			day = &windowDay{
				Date:      dateKey,
				DayOfWeek: entry.Occurrence.Date.Weekday().String(),
			}
			days[dateKey] = day
		}
		event := windowEvent{
			PersonKey: entry.Occurrence.PersonKey,
			Name:      entry.Occurrence.DisplayName,
			Summary:   entry.Occurrence.Summary,
			Date:      dateKey,
			Valid:     entry.Validation.Valid,
			Reason:    entry.Validation.Reason,
		}
		if entry.Message != nil {
			event.Message = entry.Message.Text
			event.HistoricalFact = entry.Message.HistoricalFact
			event.Fallback = entry.Message.Fallback
			event.Edited = entry.Message.Edited
		}
		day.Events = append(day.Events, event)
	}
	s.writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "running",
		"service":  s.svc.Status(),
		"schedule": s.sched.State(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.svc.Status()
	healthy := !status.CalendarStale || !status.CalendarLastSuccess.IsZero()
	code := http.StatusOK
	overall := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	s.writeJSON(w, code, map[string]any{
		"status": overall,
		"checks": map[string]any{
			"calendar_stale":       status.CalendarStale,
			"window_size":          status.WindowSize,
			"generator_configured": status.GeneratorConfigured,
		},
	})
}

type entryRequest struct {
	PersonKey string `json:"person_key"`
	Date      string `json:"date"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	req, date, ok := s.decodeEntryRequest(w, r)
	if !ok {
		return
	}
	msg, err := s.svc.Regenerate(r.Context(), req.PersonKey, date)
	if err == app.ErrNotInWindow {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	req, date, ok := s.decodeEntryRequest(w, r)
	if !ok {
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, errEmptyMessage)
		return
	}
	msg, err := s.svc.Edit(r.Context(), req.PersonKey, date, req.Message)
	if err == app.ErrNotInWindow {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleClearSent(w http.ResponseWriter, r *http.Request) {
	req, date, ok := s.decodeEntryRequest(w, r)
	if !ok {
		return
	}
	if err := s.svc.ClearSent(r.Context(), req.PersonKey, date); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.svc.Prompts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text        string `json:"text"`
		Description string `json:"description"`
		Activate    bool   `json:"activate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := s.svc.CreatePrompt(r.Context(), req.Text, req.Description, req.Activate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleActivatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, errBadPromptID)
		return
	}
	if err := s.svc.ActivatePrompt(r.Context(), req.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *Server) handleRefreshNow(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.RunRefreshNow(); err != nil {
		if err == scheduler.ErrRunInProgress {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleSendNow(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.RunDeliveryNow(); err != nil {
		if err == scheduler.ErrRunInProgress {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (s *Server) handlePurgeFacts(w http.ResponseWriter, r *http.Request) {
	personKey := chi.URLParam(r, "personKey")
	if err := s.svc.PurgeFactHistory(r.Context(), personKey); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) decodeEntryRequest(w http.ResponseWriter, r *http.Request) (entryRequest, time.Time, bool) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return req, time.Time{}, false
	}
	if req.PersonKey == "" {
		s.writeError(w, http.StatusBadRequest, errMissingPersonKey)
		return req, time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return req, time.Time{}, false
	}
	return req, date, true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Failed to write JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
