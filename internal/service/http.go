package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RegisterRoutes mounts the read-only snapshot API and the reset/export actions on mux
func (s *PostureService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/posture/snapshot", s.handleSnapshot)
	mux.HandleFunc("/posture/summary", s.handleSummary)
	mux.HandleFunc("/posture/report.xlsx", s.handleReport)
	mux.HandleFunc("/posture/reset", s.handleReset)
	mux.HandleFunc("/posture/alerts", s.handleAlerts)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *PostureService) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks, healthy := s.Health(ctx)
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, checks)
}

func (s *PostureService) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *PostureService) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Export())
}

func (s *PostureService) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := s.ExportReport()
	if err != nil {
		s.logger.Error("Failed to export posture report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export report")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="posture-report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *PostureService) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Reset())
}

func (s *PostureService) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var kinds []string
	if v := r.URL.Query().Get("kind"); v != "" {
		kinds = strings.Split(v, ",")
	}

	events, err := s.RecentAlerts(r.Context(), kinds, limit)
	if err != nil {
		if errors.Is(err, ErrRecorderDisabled) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("Failed to list posture alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *PostureService) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
