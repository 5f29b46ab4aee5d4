package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/engine"
	"github.com/swingsense/impact-detector/internal/eventlog"
	"github.com/swingsense/impact-detector/internal/notify"
	"github.com/swingsense/impact-detector/internal/server"
	"github.com/swingsense/impact-detector/internal/types"
)

// Server is an HTTP server that provides the WebSocket and REST interface
// for the impact detector.
type Server struct {
	config          *config.Config
	engine          *engine.Engine
	commands        *server.CommandHandler
	version         *VersionChecker
	events          *eventlog.Logger
	ffmpegAvailable bool
}

// NewServer returns a new Server configured with the provided config and engine.
func NewServer(cfg *config.Config, eng *engine.Engine, notifier *notify.ImpactNotifier, events *eventlog.Logger, ffmpegAvailable bool) *Server {
	commands := server.NewCommandHandler(cfg, eng, notifier, ffmpegAvailable)

	return &Server{
		config:          cfg,
		engine:          eng,
		commands:        commands,
		version:         NewVersionChecker(),
		events:          events,
		ffmpegAvailable: ffmpegAvailable,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Create buffered send channel for thread-safe writes.
	// Only the writer goroutine writes to the connection, preventing race conditions.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	// Writer goroutine - sole writer to the connection
	go s.runWebSocketWriter(conn, send)

	// Reader goroutine - handles incoming commands
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop handles periodic status and level updates.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	levelsTicker := time.NewTicker(100 * time.Millisecond)  // 10 fps for the level meter
	statusTicker := time.NewTicker(3000 * time.Millisecond) // Status updates every 3s
	defer levelsTicker.Stop()
	defer statusTicker.Stop()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		case <-levelsTicker.C:
			if !trySend(types.WSLevelsResponse{Type: "levels", Levels: s.engine.Levels()}) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	cfg := s.config.Snapshot()

	return types.WSStatusResponse{
		Type:            "status",
		FFmpegAvailable: s.ffmpegAvailable,
		Engine:          s.engine.Status(),
		ImpactThreshold: cfg.ImpactThreshold,
		NoiseFactor:     cfg.NoiseFactor,
		AudioInput:      cfg.AudioInput,
		Platform:        runtime.GOOS,
		WebhookURL:      cfg.WebhookURL,
		ImpactLogPath:   cfg.LogPath,
		RecordingPath:   cfg.RecordingPath,
		GraphTenantID:   cfg.GraphTenantID,
		GraphClientID:   cfg.GraphClientID,
		GraphFrom:       cfg.GraphFromAddress,
		GraphRecipients: cfg.GraphRecipients,
		Version:         s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// WebSocket for the control UI (origin-checked in the upgrader)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Read-only status endpoints
	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/levels", s.handleAPILevels)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)
	mux.HandleFunc("/api/events", s.handleAPIEvents)

	// Session and detection endpoints (API key auth)
	mux.HandleFunc("/api/sessions/start", s.apiKeyAuth(s.handleStartSession))
	mux.HandleFunc("/api/sessions/stop", s.apiKeyAuth(s.handleStopSession))
	mux.HandleFunc("/api/detect", s.apiKeyAuth(s.handleDetect))
	mux.HandleFunc("/api/analyze", s.apiKeyAuth(s.handleAnalyze))

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
