package photohistory

import (
	"context"
	"fmt"
	"sync"
)

// Collection holds every item built from a set of source assets, runs one
// Pipeline over them, and publishes a view that is either the full list or
// the matching subsequence, always in original order.
//
// The view is recomputed in full on every pipeline progress tick and on
// every toggle change.
type Collection struct {
	items    []*Item
	byID     map[string]*Item
	pipeline *Pipeline

	mu       sync.RWMutex
	policy   Policy
	filtered bool
	view     []*Item
	onChange func()
}

// CollectionOption configures optional Collection behavior.
type CollectionOption func(*Collection)

// WithFilter sets the initial filter toggle.
func WithFilter(enabled bool) CollectionOption {
	return func(c *Collection) { c.filtered = enabled }
}

// WithPolicy sets the initial match policy.
func WithPolicy(p Policy) CollectionOption {
	return func(c *Collection) { c.policy = p }
}

// WithOnChange registers a callback invoked after every view recomputation.
// Pipeline-driven calls arrive one at a time on the pipeline's delivery
// goroutine; toggle-driven calls arrive on the caller's goroutine.
// A pipeline-driven call must not call Close directly, since Close waits for
// that same goroutine; use go c.Close() instead.
func WithOnChange(fn func()) CollectionOption {
	return func(c *Collection) { c.onChange = fn }
}

// NewCollection builds items from assets (first occurrence of an ID wins),
// creates the analysis pipeline and starts it with ctx.
func NewCollection(ctx context.Context, assets []Asset, cfg Config, opts ...CollectionOption) (*Collection, error) {
	c := &Collection{
		byID: make(map[string]*Item, len(assets)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, a := range assets {
		if _, dup := c.byID[a.ID]; dup {
			continue
		}
		it := NewItem(a)
		c.byID[a.ID] = it
		c.items = append(c.items, it)
	}

	p, err := NewPipeline(c.items, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	p.OnProgress = c.refresh
	p.OnFinished = c.refresh
	c.pipeline = p

	c.mu.Lock()
	c.view = c.computeView()
	c.mu.Unlock()

	p.Start(ctx)
	return c, nil
}

// Close stops background analysis and waits for it to wind down.
func (c *Collection) Close() {
	c.pipeline.Close()
}

// Wait blocks until background analysis has finished or ctx ends.
func (c *Collection) Wait(ctx context.Context) error {
	return c.pipeline.Wait(ctx)
}

// Pipeline returns the collection's analysis pipeline.
func (c *Collection) Pipeline() *Pipeline { return c.pipeline }

// IsAnalyzing reports whether background analysis is still running.
func (c *Collection) IsAnalyzing() bool { return c.pipeline.IsAnalyzing() }

// Items returns every item in original order.
func (c *Collection) Items() []*Item {
	out := make([]*Item, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up an item by ID.
func (c *Collection) Item(id string) (*Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// View returns the currently published view.
func (c *Collection) View() []*Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Item, len(c.view))
	copy(out, c.view)
	return out
}

// IsFiltered reports whether the view is restricted to matching items.
func (c *Collection) IsFiltered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filtered
}

// SetFiltered toggles filtering and republishes the view.
func (c *Collection) SetFiltered(enabled bool) {
	c.update(func() { c.filtered = enabled })
}

// Policy returns the current match policy.
func (c *Collection) Policy() Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// SetPolicy replaces the match policy and republishes the view.
func (c *Collection) SetPolicy(p Policy) {
	c.update(func() { c.policy = p })
}

// Verdict evaluates one item against the current policy.
func (c *Collection) Verdict(id string) (Verdict, bool) {
	it, ok := c.byID[id]
	if !ok {
		return Verdict{}, false
	}
	return c.Policy().Evaluate(it), true
}

// Title summarizes progress and the view for display:
// "Analyzing 12/400" while analysis runs, "400 Photos" for the full list,
// "37 Filtered Photos" otherwise.
func (c *Collection) Title() string {
	if c.pipeline.IsAnalyzing() {
		return fmt.Sprintf("Analyzing %d/%d", c.pipeline.Remaining(), len(c.items))
	}
	view := c.View()
	if len(view) == len(c.items) {
		return fmt.Sprintf("%d Photos", len(view))
	}
	return fmt.Sprintf("%d Filtered Photos", len(view))
}

// Point is a located view entry for a map layer.
type Point struct {
	ID        string  `json:"id" yaml:"id"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Located returns the view entries that carry a location.
func (c *Collection) Located() []Point {
	var points []Point
	for _, it := range c.View() {
		if !it.HasLocation() {
			continue
		}
		a := it.Asset()
		points = append(points, Point{ID: a.ID, Latitude: a.Latitude, Longitude: a.Longitude})
	}
	return points
}

func (c *Collection) refresh() {
	c.update(nil)
}

func (c *Collection) update(mutate func()) {
	c.mu.Lock()
	if mutate != nil {
		mutate()
	}
	c.view = c.computeView()
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// computeView rescans every item. Callers hold c.mu.
func (c *Collection) computeView() []*Item {
	if !c.filtered {
		view := make([]*Item, len(c.items))
		copy(view, c.items)
		return view
	}
	view := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		if c.policy.Evaluate(it).Matches() {
			view = append(view, it)
		}
	}
	return view
}
