package photohistory

import (
	"errors"
	"sync"
	"testing"
)

func TestItem_SetAnalysisIsWriteOnce(t *testing.T) {
	t.Parallel()

	it := NewItem(Asset{ID: "a", HasLocation: true})
	if it.IsAnalyzed() {
		t.Fatal("new item should not be analyzed")
	}
	if _, ok := it.Analysis(); ok {
		t.Fatal("Analysis() reported present on a new item")
	}

	first := Analysis{Labels: []Label{{Name: "outdoor", Confidence: 0.95}}, FaceCount: 1}
	if err := it.SetAnalysis(first); err != nil {
		t.Fatalf("first SetAnalysis: %v", err)
	}

	err := it.SetAnalysis(Analysis{FaceCount: 7})
	if !errors.Is(err, ErrAlreadyAnalyzed) {
		t.Fatalf("second SetAnalysis error = %v, want ErrAlreadyAnalyzed", err)
	}

	got, ok := it.Analysis()
	if !ok {
		t.Fatal("Analysis() missing after write")
	}
	if got.FaceCount != 1 || !got.HasLabel("outdoor") {
		t.Errorf("Analysis() = %+v, want the first write", got)
	}
}

func TestItem_SetAnalysisConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	it := NewItem(Asset{ID: "a"})
	const writers = 32

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if it.SetAnalysis(Analysis{FaceCount: i}) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful writes = %d, want 1", wins)
	}
}

func TestItem_AnalysisIsCopied(t *testing.T) {
	t.Parallel()

	labels := []Label{{Name: "outdoor", Confidence: 0.95}}
	it := NewItem(Asset{ID: "a"})
	if err := it.SetAnalysis(Analysis{Labels: labels}); err != nil {
		t.Fatal(err)
	}

	labels[0].Name = "indoor"
	got, _ := it.Analysis()
	got.Labels[0].Name = "document"

	again, _ := it.Analysis()
	if again.Labels[0].Name != "outdoor" {
		t.Errorf("stored label mutated to %q", again.Labels[0].Name)
	}
}

func TestItem_NegativeFaceCountClamped(t *testing.T) {
	t.Parallel()

	it := NewItem(Asset{ID: "a"})
	if err := it.SetAnalysis(Analysis{FaceCount: -3}); err != nil {
		t.Fatal(err)
	}
	got, _ := it.Analysis()
	if got.FaceCount != 0 {
		t.Errorf("FaceCount = %d, want 0", got.FaceCount)
	}
}
