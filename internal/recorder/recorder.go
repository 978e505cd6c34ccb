package recorder

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/bridge"
	"github.com/ayusman/mudra/internal/wire"
)

// Recorder decorates a gesture callback with persistence. Delivery is
// never blocked on storage problems: a failed insert is logged and the
// wrapped callback still runs.
type Recorder struct {
	store *Store
	log   *logrus.Logger
}

// New creates a Recorder writing to store.
func New(store *Store, log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{store: store, log: log}
}

// Wrap returns a gesture callback that records each recognized hand and
// then invokes cb. Frames without hands (nil buffer) record nothing.
func (r *Recorder) Wrap(cb bridge.GestureCallback) bridge.GestureCallback {
	return func(buf []float32, gestures []string, timestampMs int64) {
		if buf != nil {
			if err := r.record(buf, gestures, timestampMs); err != nil {
				r.log.WithError(err).Warn("failed to record gesture events")
			}
		}
		if cb != nil {
			cb(buf, gestures, timestampMs)
		}
	}
}

func (r *Recorder) record(buf []float32, gestures []string, timestampMs int64) error {
	hands := wire.DecodeGestures(buf, gestures)
	events := make([]Event, 0, len(hands))

	for i, hand := range hands {
		landmarks, err := json.Marshal(hand.Points)
		if err != nil {
			return err
		}
		events = append(events, Event{
			ID:          uuid.NewString(),
			TimestampMs: timestampMs,
			HandIndex:   i,
			Handedness:  hand.Handedness,
			Gesture:     hand.Gesture,
			Score:       float64(hand.Score),
			Landmarks:   string(landmarks),
		})
	}

	return r.store.Record(events)
}
