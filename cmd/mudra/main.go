package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/bridge"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/recorder"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/stream"
)

func main() {
	var (
		addr          = flag.String("addr", ":8080", "HTTP listen address")
		landmarkModel = flag.String("landmark-model", "", "path to the hand landmark model")
		gestureModel  = flag.String("gesture-model", "", "path to the gesture recognizer model")
		numHands      = flag.Int("num-hands", 2, "maximum hands for gesture recognition")
		dbPath        = flag.String("db", "", "path to the gesture event database (default ~/.mudra/mudra.db)")
		verbose       = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *landmarkModel == "" && *gestureModel == "" {
		log.Fatal("at least one of -landmark-model or -gesture-model is required")
	}

	store, err := recorder.Open(eventDBPath(*dbPath, log))
	if err != nil {
		log.WithError(err).Fatal("failed to open event store")
	}
	defer store.Close()

	hub := stream.NewHub(log)
	rec := recorder.New(store, log)

	b := bridge.New(bridge.Config{
		Provider: &engine.SubprocessProvider{Log: log},
		Log:      log,
	})
	defer b.CloseAll()

	cfg := server.Config{
		Bridge: b,
		Hub:    hub,
		Events: store,
		Log:    log,
	}

	if *landmarkModel != "" {
		h, err := b.CreateLandmarker(*landmarkModel, hub.WrapLandmarks(nil))
		if err != nil {
			log.WithError(err).Fatal("failed to create landmark session")
		}
		cfg.Landmarker = h
	}

	if *gestureModel != "" {
		h, err := b.CreateRecognizer(*gestureModel, *numHands, rec.Wrap(hub.WrapGestures(nil)))
		if err != nil {
			log.WithError(err).Fatal("failed to create gesture session")
		}
		cfg.Recognizer = h
	}

	srv := server.New(cfg)
	log.WithField("addr", *addr).Info("starting server")
	if err := srv.ListenAndServe(*addr); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

// eventDBPath resolves the event database location, defaulting to
// ~/.mudra/mudra.db.
func eventDBPath(override string, log *logrus.Logger) string {
	if override != "" {
		return override
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.WithError(err).Fatal("failed to resolve home directory")
	}

	dbDir := filepath.Join(homeDir, ".mudra")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.WithError(err).Fatal("failed to create data directory")
	}
	return filepath.Join(dbDir, "mudra.db")
}
