package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swingsense/impact-detector/internal/audio"
	"github.com/swingsense/impact-detector/internal/detect"
	"github.com/swingsense/impact-detector/internal/engine"
	"github.com/swingsense/impact-detector/internal/eventlog"
)

const (
	// maxUploadBytes caps the size of uploaded recordings.
	maxUploadBytes = 64 << 20

	// defaultDetectWait is how long /api/detect waits for an impact by default.
	defaultDetectWait = 30 * time.Second
	maxDetectWait     = 120 * time.Second
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// apiKeyAuth returns middleware for API key authentication.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := s.config.GetAPIKey()
		if apiKey == "" {
			http.Error(w, "API key not configured", http.StatusServiceUnavailable)
			return
		}

		providedKey := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleAPIStatus returns the engine status.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleAPILevels returns the current meter levels.
// GET /api/levels
func (s *Server) handleAPILevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.engine.Levels())
}

// handleAPIDevices returns available audio input devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": audio.Devices(),
	})
}

// handleAPIEvents returns recent events from the event log.
// GET /api/events?limit=50&offset=0&filter=impact
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.events == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Event log not available")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	filter := eventlog.TypeFilter(r.URL.Query().Get("filter"))

	events, hasMore, err := eventlog.ReadLast(s.events.Path(), limit, offset, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"has_more": hasMore,
	})
}

// handleStartSession begins a listening session.
// POST /api/sessions/start
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.engine.Start(); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "session_started"})
}

// handleStopSession ends the listening session.
// POST /api/sessions/stop
func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "session_stopped"})
}

// handleDetect arms a one-shot detection and waits for the result.
// POST /api/detect?wait_ms=30000
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	wait := defaultDetectWait
	if v := r.URL.Query().Get("wait_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			s.writeError(w, http.StatusBadRequest, "wait_ms must be a positive integer")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, maxDetectWait)
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	result, err := s.engine.DetectImpact(ctx)
	switch {
	case err == nil:
		// Either an impact or a negative resolution after session stop
	case errors.Is(err, context.DeadlineExceeded):
		// Nothing qualified within the window
	case errors.Is(err, detect.ErrNotListening), errors.Is(err, detect.ErrDetectionActive):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"detected":     result.Detected,
		"timestamp_ms": result.TimestampMs,
		"confidence":   result.Confidence,
	})
}

// handleAnalyze scans an uploaded recording for an impact.
// POST /api/analyze with a multipart "file" field or a raw audio body.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !s.ffmpegAvailable {
		s.writeError(w, http.StatusServiceUnavailable, "FFmpeg not available")
		return
	}

	blob, err := readUpload(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.AnalyzeRecording(r.Context(), blob)
	if err != nil {
		// Decode failures are reported, never masked as a negative result
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"detected":     result.Detected,
		"timestamp_ms": result.TimestampMs,
		"confidence":   result.Confidence,
	})
}

// readUpload extracts the audio blob from a multipart form or raw body.
func readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart form must include a 'file' field")
		}
		defer func() {
			_ = file.Close()
		}()
		return io.ReadAll(file)
	}

	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	return blob, nil
}
