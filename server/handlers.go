package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/seawatch/threat-monitor/backend/internal/config"
	"github.com/seawatch/threat-monitor/backend/internal/models"
	"github.com/seawatch/threat-monitor/backend/internal/notify"
	"github.com/seawatch/threat-monitor/backend/internal/scheduler"
)

const apiKeyHeader = "X-API-Key"

// threatLister reads stored records, newest first.
type threatLister interface {
	ListThreats(ctx context.Context, skip, limit int) ([]models.ThreatRecord, error)
}

// jobControl is the slice of the scheduler the handlers need.
type jobControl interface {
	Status() scheduler.Status
	TriggerManual(ctx context.Context, apiKey string) (models.RunSummary, error)
}

type server struct {
	log     *slog.Logger
	cfg     *config.Server
	threats threatLister
	queue   *notify.Queue
	sched   jobControl
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "maritime threat monitor API"})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.sched.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"scheduler": st.State,
		"next_run":  st.NextRun,
	})
}

func (s *server) handleListThreats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	skip := parseNonNegative(r.URL.Query().Get("skip"), 0)
	limit := clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultPage, s.cfg.MaxPage)

	threats, err := s.threats.ListThreats(ctx, skip, limit)
	if err != nil {
		s.log.Error("list threats", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list threats"})
		return
	}

	writeJSON(w, http.StatusOK, threats)
}

// handleNotifications streams committed records to the subscriber as
// server-sent events. The subscriber sees every record published while it is
// connected, in publish order; nothing published before it connected is
// replayed. Concurrent subscribers race for records rather than each
// receiving a copy.
func (s *server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		rec, err := s.queue.Next(r.Context())
		if err != nil {
			s.log.Info("notification subscriber disconnected")
			return
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			s.log.Error("marshal notification", slog.Int64("id", rec.ID), slog.Any("err", err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sched.TriggerManual(r.Context(), r.Header.Get(apiKeyHeader))
	if errors.Is(err, scheduler.ErrUnauthorized) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid API key"})
		return
	}
	if err != nil {
		s.log.Error("manual discovery failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("threat discovery failed: %v", err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "threat discovery completed successfully",
		"summary": summary,
	})
}

func (s *server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func parseNonNegative(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
