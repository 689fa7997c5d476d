package photohistory

import (
	"errors"
	"slices"
	"sync/atomic"
)

// ErrAlreadyAnalyzed is returned when an item's analysis is set a second time.
var ErrAlreadyAnalyzed = errors.New("photohistory: item already analyzed")

// Label is a confidence-scored semantic tag produced by a Labeler.
type Label struct {
	Name       string  `json:"name" yaml:"name"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Analysis is the merged result of label classification and face detection.
type Analysis struct {
	Labels    []Label // only labels that passed FilterConfident
	FaceCount int
}

// HasLabel reports whether the analysis carries a label with the given name.
func (a Analysis) HasLabel(name string) bool {
	return slices.ContainsFunc(a.Labels, func(l Label) bool { return l.Name == name })
}

// LabelNames returns the label names in stored order.
func (a Analysis) LabelNames() []string {
	names := make([]string, 0, len(a.Labels))
	for _, l := range a.Labels {
		names = append(names, l.Name)
	}
	return names
}

// Item is a single photo subject to analysis and match evaluation.
// Its identity and location flag are fixed at construction; its analysis
// is written at most once.
type Item struct {
	asset    Asset
	analysis atomic.Pointer[Analysis]
}

// NewItem builds an unanalyzed item from a source asset.
func NewItem(asset Asset) *Item {
	return &Item{asset: asset}
}

// ID returns the item's stable identity within its collection.
func (it *Item) ID() string { return it.asset.ID }

// HasLocation reports whether the source asset carried a location.
func (it *Item) HasLocation() bool { return it.asset.HasLocation }

// Asset returns the source handle the item was built from.
func (it *Item) Asset() Asset { return it.asset }

// Analysis returns a copy of the item's analysis and whether it is present.
func (it *Item) Analysis() (Analysis, bool) {
	a := it.analysis.Load()
	if a == nil {
		return Analysis{}, false
	}
	return Analysis{Labels: slices.Clone(a.Labels), FaceCount: a.FaceCount}, true
}

// IsAnalyzed reports whether the item's analysis has been written.
func (it *Item) IsAnalyzed() bool {
	return it.analysis.Load() != nil
}

// SetAnalysis stores the analysis result. The first call wins; every later
// call returns ErrAlreadyAnalyzed and leaves the stored result untouched.
func (it *Item) SetAnalysis(a Analysis) error {
	stored := &Analysis{Labels: slices.Clone(a.Labels), FaceCount: max(a.FaceCount, 0)}
	if !it.analysis.CompareAndSwap(nil, stored) {
		return ErrAlreadyAnalyzed
	}
	return nil
}
