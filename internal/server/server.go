// Package server exposes the bridge to HTTP consumers: raw frames in,
// live results out over WebSocket.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/bridge"
	"github.com/ayusman/mudra/internal/recorder"
	"github.com/ayusman/mudra/internal/stream"
)

// Config holds the server configuration.
type Config struct {
	Bridge *bridge.Bridge

	// Landmarker and Recognizer are the session handles frames are routed
	// to. A zero handle disables the corresponding route.
	Landmarker bridge.Handle
	Recognizer bridge.Handle

	// Hub serves the results WebSocket when set.
	Hub *stream.Hub

	// Events serves recorded gesture events when set.
	Events *recorder.Store

	Log *logrus.Logger
}

// Server routes HTTP traffic to the bridge.
type Server struct {
	config Config
	log    *logrus.Logger
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		config: config,
		log:    log,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Bridge != nil {
		if s.config.Landmarker != 0 {
			s.mux.HandleFunc("/api/frames/landmarks", s.handleLandmarkFrame)
		}
		if s.config.Recognizer != 0 {
			s.mux.HandleFunc("/api/frames/gestures", s.handleGestureFrame)
		}
	}

	if s.config.Events != nil {
		s.mux.HandleFunc("/api/events", s.handleEvents)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/results", s.config.Hub)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleLandmarkFrame accepts a raw sRGB frame body and submits it to the
// streaming landmark session. Results arrive later over the WebSocket.
func (s *Server) handleLandmarkFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.readFrame(w, r)
	if !ok {
		return
	}

	err := s.config.Bridge.DetectAsync(s.config.Landmarker,
		frame.pixels, frame.width, frame.height, frame.timestampMs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleGestureFrame accepts a raw sRGB frame body and runs blocking
// gesture recognition. The callback has already fired when this responds.
func (s *Server) handleGestureFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.readFrame(w, r)
	if !ok {
		return
	}

	err := s.config.Bridge.RecognizeVideo(s.config.Recognizer,
		frame.pixels, frame.width, frame.height, frame.timestampMs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleEvents returns recent recorded gesture events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.config.Events.Recent(limit)
	if err != nil {
		s.log.WithError(err).Error("list gesture events")
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"events": events}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type rawFrame struct {
	pixels      []byte
	width       int
	height      int
	timestampMs int64
}

// readFrame parses a frame request: width, height and timestamp_ms query
// parameters plus the raw pixel body.
func (s *Server) readFrame(w http.ResponseWriter, r *http.Request) (rawFrame, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return rawFrame{}, false
	}

	q := r.URL.Query()
	width, err := strconv.Atoi(q.Get("width"))
	if err != nil {
		http.Error(w, "invalid width", http.StatusBadRequest)
		return rawFrame{}, false
	}
	height, err := strconv.Atoi(q.Get("height"))
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return rawFrame{}, false
	}
	timestampMs, err := strconv.ParseInt(q.Get("timestamp_ms"), 10, 64)
	if err != nil {
		timestampMs = time.Now().UnixMilli()
	}

	pixels, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read frame body", http.StatusBadRequest)
		return rawFrame{}, false
	}

	return rawFrame{pixels: pixels, width: width, height: height, timestampMs: timestampMs}, true
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
