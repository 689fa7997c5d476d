// Package photohistory incrementally analyzes a photo collection in the
// background and decides which photos qualify as historic outdoor photos.
//
// A [Pipeline] fetches each photo's bytes from a [Library], runs label
// classification and face detection concurrently, and stores the merged
// [Analysis] on the [Item]. A [Policy] turns an item's current state into a
// [Verdict]. A [Collection] ties both together and publishes a filtered view.
package photohistory

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultWorkers is the number of concurrent pipeline workers.
	DefaultWorkers = 10

	// DefaultItemTimeout bounds fetch plus classification for a single item.
	// Collaborator calls still running at the deadline are abandoned.
	DefaultItemTimeout = 60 * time.Second
)

var (
	// ErrNoLibrary is returned when a pipeline is built without a Library.
	ErrNoLibrary = errors.New("photohistory: library is required")
	// ErrNoLabeler is returned when a pipeline is built without a Labeler.
	ErrNoLabeler = errors.New("photohistory: labeler is required")
	// ErrNoFaceDetector is returned when a pipeline is built without a FaceDetector.
	ErrNoFaceDetector = errors.New("photohistory: face detector is required")
)

// Cache abstracts key-value caching (go-cache, Redis, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Library      Library      // required: supplies raw image bytes
	Labeler      Labeler      // required: semantic label classification
	FaceDetector FaceDetector // required: face region detection

	Workers     int           // default: DefaultWorkers (10)
	ItemTimeout time.Duration // default: DefaultItemTimeout (60s)

	Logger  *slog.Logger // default: slog.Default()
	Metrics *Metrics     // optional: nil disables metrics

	// Optional callbacks for metrics/logging.
	OnPanic    func(tag string, r any)
	OnAnalysis func(AnalysisEvent) // called from worker goroutines, not serialized
}

// AnalysisEvent describes a single item analysis for audit logging.
type AnalysisEvent struct {
	ItemID    string
	Labels    []Label
	FaceCount int
	Degraded  []string // capabilities that failed and were defaulted: "labels", "faces"
	Duration  time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = DefaultItemTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	switch {
	case c.Library == nil:
		return ErrNoLibrary
	case c.Labeler == nil:
		return ErrNoLabeler
	case c.FaceDetector == nil:
		return ErrNoFaceDetector
	}
	return nil
}
