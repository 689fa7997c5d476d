package photohistory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubLibrary serves the asset ID as image bytes and counts fetches per ID.
type stubLibrary struct {
	missing map[string]bool // IDs that report ErrNotFound
	delay   time.Duration

	mu      sync.Mutex
	fetches map[string]int
	total   atomic.Int64
}

func newStubLibrary(missing ...string) *stubLibrary {
	l := &stubLibrary{missing: map[string]bool{}, fetches: map[string]int{}}
	for _, id := range missing {
		l.missing[id] = true
	}
	return l
}

func (l *stubLibrary) Fetch(ctx context.Context, asset Asset) (*ImageData, error) {
	l.total.Add(1)
	l.mu.Lock()
	l.fetches[asset.ID]++
	l.mu.Unlock()

	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.missing[asset.ID] {
		return nil, ErrNotFound
	}
	return &ImageData{Data: []byte(asset.ID), Orientation: OrientationUp}, nil
}

func (l *stubLibrary) fetchCount(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches[id]
}

// stubClassifier answers both capabilities from per-ID tables keyed by the
// image bytes the stub library serves.
type stubClassifier struct {
	labels    map[string][]Label
	faces     map[string]int
	labelErrs map[string]bool
	faceErrs  map[string]bool

	labelCalls atomic.Int64
	faceCalls  atomic.Int64
}

func newStubClassifier() *stubClassifier {
	return &stubClassifier{
		labels:    map[string][]Label{},
		faces:     map[string]int{},
		labelErrs: map[string]bool{},
		faceErrs:  map[string]bool{},
	}
}

func (c *stubClassifier) ClassifyLabels(_ context.Context, data []byte, _ Orientation) ([]Label, error) {
	c.labelCalls.Add(1)
	id := string(data)
	if c.labelErrs[id] {
		return nil, errors.New("label model unavailable")
	}
	return c.labels[id], nil
}

func (c *stubClassifier) DetectFaces(_ context.Context, data []byte, _ Orientation) (int, error) {
	c.faceCalls.Add(1)
	id := string(data)
	if c.faceErrs[id] {
		return 0, errors.New("face model unavailable")
	}
	return c.faces[id], nil
}

func located(ids ...string) []Asset {
	assets := make([]Asset, len(ids))
	for i, id := range ids {
		assets[i] = Asset{ID: id, HasLocation: true, Latitude: 51.05, Longitude: 3.72}
	}
	return assets
}

func itemsFrom(assets []Asset) []*Item {
	items := make([]*Item, len(assets))
	for i, a := range assets {
		items[i] = NewItem(a)
	}
	return items
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(lib Library, cls *stubClassifier, workers int) Config {
	return Config{
		Library:      lib,
		Labeler:      cls,
		FaceDetector: cls,
		Workers:      workers,
		Logger:       discardLogger(),
	}
}

func waitDone(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("pipeline did not finish: %v", err)
	}
}

func analyzedItem(t *testing.T, hasLocation bool, a Analysis) *Item {
	t.Helper()
	it := NewItem(Asset{ID: "photo", HasLocation: hasLocation})
	if err := it.SetAnalysis(a); err != nil {
		t.Fatalf("SetAnalysis: %v", err)
	}
	return it
}
