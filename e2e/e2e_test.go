package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/bridge"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/recorder"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/stream"
	"github.com/ayusman/mudra/internal/wire"
)

// TestE2E_CompleteWorkflow drives the whole path a consumer sees: frames
// in over HTTP, packed results out over the WebSocket, gesture events in
// the store.
func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := recorder.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("recorder.Open() error = %v", err)
	}
	defer store.Close()

	hub := stream.NewHub(log)
	rec := recorder.New(store, log)
	provider := engine.NewMockProvider()

	b := bridge.New(bridge.Config{Provider: provider, Log: log})
	defer b.CloseAll()

	lh, err := b.CreateLandmarker("model.task", hub.WrapLandmarks(nil))
	if err != nil {
		t.Fatalf("CreateLandmarker() error = %v", err)
	}
	gh, err := b.CreateRecognizer("model.task", 2, rec.Wrap(hub.WrapGestures(nil)))
	if err != nil {
		t.Fatalf("CreateRecognizer() error = %v", err)
	}

	srv := server.New(server.Config{
		Bridge:     b,
		Landmarker: lh,
		Recognizer: gh,
		Hub:        hub,
		Events:     store,
		Log:        log,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	// Subscribe to results.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	points := make([]engine.Point, wire.NumLandmarks)
	for i := range points {
		points[i] = engine.Point{X: float32(i) * 0.01, Y: float32(i) * 0.02, Z: 0}
	}
	result := &engine.Result{
		Handedness: [][]engine.Category{{{Label: "Right", Score: 0.93}}},
		Landmarks:  [][]engine.Point{points},
		Gestures:   [][]engine.Category{{{Label: "Thumb_Up", Score: 0.85}}},
	}

	pixels := make([]byte, 8*6*3)

	t.Run("SynchronousGestureFrame", func(t *testing.T) {
		provider.Recognizers()[0].SetResult(result)

		resp, err := ts.Client().Post(
			ts.URL+"/api/frames/gestures?width=8&height=6&timestamp_ms=1000",
			"application/octet-stream", bytes.NewReader(pixels))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}

		var payload struct {
			Hands     []wire.Hand `json:"hands"`
			Timestamp int64       `json:"timestamp"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if payload.Timestamp != 1000 {
			t.Errorf("expected timestamp 1000, got %d", payload.Timestamp)
		}
		if len(payload.Hands) != 1 || payload.Hands[0].Gesture != "Thumb_Up" {
			t.Fatalf("unexpected hands payload %+v", payload.Hands)
		}
	})

	t.Run("GestureEventRecorded", func(t *testing.T) {
		events, err := store.Recent(10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected one recorded event, got %d", len(events))
		}
		if events[0].Gesture != "Thumb_Up" || events[0].Handedness != "Right" {
			t.Errorf("unexpected event %+v", events[0])
		}
	})

	t.Run("AsynchronousLandmarkFrame", func(t *testing.T) {
		resp, err := ts.Client().Post(
			ts.URL+"/api/frames/landmarks?width=8&height=6&timestamp_ms=2000",
			"application/octet-stream", bytes.NewReader(pixels))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}

		// The engine delivers later, on its own goroutine.
		provider.Landmarkers()[0].Emit(result, 2000, nil)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}

		var payload struct {
			Hands     []wire.Hand `json:"hands"`
			Timestamp int64       `json:"timestamp"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if payload.Timestamp != 2000 {
			t.Errorf("expected timestamp 2000, got %d", payload.Timestamp)
		}
		if len(payload.Hands) != 1 || payload.Hands[0].Handedness != "Right" {
			t.Fatalf("unexpected hands payload %+v", payload.Hands)
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		b.Close(gh)
		b.Close(gh)

		resp, err := ts.Client().Post(
			ts.URL+"/api/frames/gestures?width=8&height=6",
			"application/octet-stream", bytes.NewReader(pixels))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 for a closed session, got %d", resp.StatusCode)
		}
	})
}
