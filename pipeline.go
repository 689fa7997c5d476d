package photohistory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Skip reasons reported to logs and metrics when an item is left unanalyzed.
const (
	skipFetch    = "fetch"
	skipTimeout  = "timeout"
	skipCanceled = "canceled"
	skipPanic    = "panic"
	skipWritten  = "already_analyzed"
)

// Pipeline analyzes a fixed set of items with a bounded pool of workers.
// It is single-shot: once every queued item has been claimed the workers
// exit and the pipeline cannot be restarted.
//
// OnProgress and OnFinished are delivered on one dedicated goroutine, one
// call at a time, so receivers may mutate their own state without locking.
// Set both before calling Start. Close waits for the delivery goroutine, so
// a callback that wants to stop the run calls go p.Close() rather than Close.
type Pipeline struct {
	// OnProgress is called once per analyzed item, after its analysis is
	// visible through Item.Analysis. Skipped items do not fire it.
	OnProgress func()
	// OnFinished is called once after the final OnProgress, when every
	// worker has exited.
	OnFinished func()

	cfg    Config
	queue  *pendingQueue
	runID  string
	logger *slog.Logger

	progress  chan struct{}
	done      chan struct{}
	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	analyzed atomic.Int64
	skipped  atomic.Int64
}

// NewPipeline builds a pipeline over items in their given order. Items that
// are already analyzed are not queued; a repeated ID is queued once.
func NewPipeline(items []*Item, cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.defaults()

	runID := uuid.NewString()
	return &Pipeline{
		cfg:      cfg,
		queue:    newPendingQueue(items),
		runID:    runID,
		logger:   cfg.Logger.With("run", runID),
		progress: make(chan struct{}, cfg.Workers),
		done:     make(chan struct{}),
	}, nil
}

// RunID identifies this pipeline run in logs.
func (p *Pipeline) RunID() string { return p.runID }

// Start launches the workers. Calling it again, or after Close, does nothing.
// Cancelling ctx stops the run the same way Close does.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)

		workers := min(p.cfg.Workers, max(p.queue.size(), 1))
		p.logger.Info("photohistory: analysis started", "items", p.queue.size(), "workers", workers)

		for i := range workers {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}
		go func() {
			p.wg.Wait()
			close(p.progress)
		}()
		go p.deliver()
	})
}

// Close cancels in-flight work and waits for workers and pending
// notifications to finish. Items not yet analyzed stay unanalyzed.
// Calling Close from OnProgress or OnFinished deadlocks.
func (p *Pipeline) Close() {
	p.startOnce.Do(func() { close(p.done) })
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

// Done is closed after the final notification has been delivered.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Wait blocks until the pipeline is done or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsAnalyzing reports whether any item is still queued or claimed.
// It turns false right before the final OnProgress call.
func (p *Pipeline) IsAnalyzing() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return p.queue.remaining() > 0
}

// Pending returns the number of items not yet claimed by a worker.
func (p *Pipeline) Pending() int { return p.queue.pending() }

// Remaining returns queued plus in-flight items.
func (p *Pipeline) Remaining() int { return p.queue.remaining() }

// Analyzed returns the number of items analyzed by this run.
func (p *Pipeline) Analyzed() int { return int(p.analyzed.Load()) }

// Skipped returns the number of claimed items left unanalyzed.
func (p *Pipeline) Skipped() int { return int(p.skipped.Load()) }

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for ctx.Err() == nil {
		it, ok := p.queue.claim()
		if !ok {
			return
		}
		p.logger.Debug("photohistory: claimed", "worker", id, "item", it.ID())

		if p.process(ctx, it) {
			p.progress <- struct{}{}
		} else {
			p.queue.release()
		}
	}
}

// deliver serializes notifications. The claim is released right before
// OnProgress so IsAnalyzing is false during the final call.
func (p *Pipeline) deliver() {
	defer close(p.done)

	for range p.progress {
		p.queue.release()
		p.notify("onProgress", p.OnProgress)
	}

	p.logger.Info("photohistory: analysis finished",
		"analyzed", p.analyzed.Load(),
		"skipped", p.skipped.Load(),
		"unclaimed", p.queue.pending(),
	)
	p.notify("onFinished", p.OnFinished)
}

func (p *Pipeline) notify(tag string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.reportPanic(tag, r)
		}
	}()
	fn()
}

func (p *Pipeline) reportPanic(tag string, r any) {
	p.logger.Error("photohistory: panic recovered", "tag", tag, "panic", r)
	if p.cfg.OnPanic != nil {
		p.cfg.OnPanic(tag, r)
	}
}

// process analyzes one item and reports whether its analysis was written.
// Recovers from panics to protect the worker.
//
// Stages:
//  1. Prescreen: location-less items get an empty analysis, no fetch
//  2. Library.Fetch: missing data or timeout skips the item
//  3. ClassifyLabels + DetectFaces: concurrent, joined, failures defaulted;
//     an expired deadline abandons the join and skips the item
//  4. SetAnalysis: write-once
func (p *Pipeline) process(ctx context.Context, it *Item) (written bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			written = false
			p.skip(it, skipPanic, nil)
			p.reportPanic("analyzeItem", r)
		}
	}()

	if reason, ok := Prescreen(it); ok {
		p.logger.Debug("photohistory: prescreened", "item", it.ID(), "reason", reason.String())
		return p.commit(it, Analysis{}, nil, start)
	}

	ictx, cancel := context.WithTimeout(ctx, p.cfg.ItemTimeout)
	defer cancel()

	img, err := p.fetch(ictx, it)
	if err == nil && (img == nil || len(img.Data) == 0) {
		err = ErrNotFound
	}
	if err != nil {
		fallback := skipFetch
		if errors.Is(err, errPanicked) {
			fallback = skipPanic
		}
		p.skip(it, p.skipReason(ctx, ictx, fallback), err)
		return false
	}
	p.logger.Debug("photohistory: fetched", "item", it.ID(), "bytes", len(img.Data), "orientation", img.Orientation.String())

	analysis, degraded, err := p.analyze(ictx, it, img)
	if err == nil {
		err = ictx.Err()
	}
	if err != nil {
		p.skip(it, p.skipReason(ctx, ictx, skipTimeout), err)
		return false
	}

	return p.commit(it, analysis, degraded, start)
}

// fetch runs Library.Fetch on its own goroutine and gives up when ctx ends,
// so a library that ignores ctx cannot hold the worker past the deadline.
// An abandoned call runs to completion and its result is dropped.
func (p *Pipeline) fetch(ctx context.Context, it *Item) (*ImageData, error) {
	type result struct {
		img *ImageData
		err error
	}
	ch := make(chan result, 1)

	go func() {
		var r result
		defer func() {
			if rec := recover(); rec != nil {
				r = result{err: errPanicked}
				p.reportPanic("analyzeItem", rec)
			}
			ch <- r
		}()
		r.img, r.err = p.cfg.Library.Fetch(ctx, it.Asset())
	}()

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// analyze runs both capabilities against the same bytes and waits for both,
// or until ctx ends. A failing capability contributes its empty default.
// When ctx ends first the branches are abandoned and ctx's error returned.
func (p *Pipeline) analyze(ctx context.Context, it *Item, img *ImageData) (Analysis, []string, error) {
	orientation := img.Orientation
	if !orientation.Valid() {
		orientation = OrientationUp
	}

	var (
		g         errgroup.Group
		labels    []Label
		faces     int
		labelsErr error
		facesErr  error
	)
	g.Go(func() error {
		defer p.guard("classifyLabels", &labelsErr)
		got, err := p.cfg.Labeler.ClassifyLabels(ctx, img.Data, orientation)
		if err != nil {
			labelsErr = err
			return nil
		}
		labels = FilterConfident(got)
		return nil
	})
	g.Go(func() error {
		defer p.guard("detectFaces", &facesErr)
		n, err := p.cfg.FaceDetector.DetectFaces(ctx, img.Data, orientation)
		if err != nil {
			facesErr = err
			return nil
		}
		faces = max(n, 0)
		return nil
	})
	joined := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
		return Analysis{}, nil, ctx.Err()
	}

	var degraded []string
	if labelsErr != nil {
		labels = nil
		degraded = append(degraded, "labels")
		p.cfg.Metrics.classifierDegraded("labels")
		p.logger.Debug("photohistory: label classification failed", "item", it.ID(), "error", labelsErr.Error())
	}
	if facesErr != nil {
		faces = 0
		degraded = append(degraded, "faces")
		p.cfg.Metrics.classifierDegraded("faces")
		p.logger.Debug("photohistory: face detection failed", "item", it.ID(), "error", facesErr.Error())
	}

	return Analysis{Labels: labels, FaceCount: faces}, degraded, nil
}

// guard turns a panic in a collaborator call into a failure of that call.
func (p *Pipeline) guard(tag string, errp *error) {
	if r := recover(); r != nil {
		*errp = errPanicked
		p.reportPanic(tag, r)
	}
}

var errPanicked = errors.New("photohistory: collaborator panicked")

func (p *Pipeline) commit(it *Item, a Analysis, degraded []string, start time.Time) bool {
	if err := it.SetAnalysis(a); err != nil {
		p.skip(it, skipWritten, err)
		return false
	}

	elapsed := time.Since(start)
	p.analyzed.Add(1)
	p.cfg.Metrics.itemAnalyzed(elapsed)

	stored, _ := it.Analysis()
	p.logger.Debug("photohistory: analyzed",
		"item", it.ID(),
		"labels", stored.LabelNames(),
		"faces", stored.FaceCount,
		"elapsed", elapsed,
	)
	if p.cfg.OnAnalysis != nil {
		event := AnalysisEvent{
			ItemID:    it.ID(),
			Labels:    stored.Labels,
			FaceCount: stored.FaceCount,
			Degraded:  degraded,
			Duration:  elapsed,
		}
		p.notify("onAnalysis", func() { p.cfg.OnAnalysis(event) })
	}
	return true
}

func (p *Pipeline) skip(it *Item, reason string, err error) {
	p.skipped.Add(1)
	p.cfg.Metrics.itemSkipped(reason)

	attrs := []any{"item", it.ID(), "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	p.logger.Debug("photohistory: skipped", attrs...)
}

// skipReason distinguishes shutdown and per-item timeout from plain failure.
func (p *Pipeline) skipReason(parent, item context.Context, fallback string) string {
	switch {
	case parent.Err() != nil:
		return skipCanceled
	case errors.Is(item.Err(), context.DeadlineExceeded):
		return skipTimeout
	default:
		return fallback
	}
}
