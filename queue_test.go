package photohistory

import (
	"strconv"
	"sync"
	"testing"
)

func TestPendingQueue_FIFOAndDedup(t *testing.T) {
	t.Parallel()

	done := NewItem(Asset{ID: "done"})
	if err := done.SetAnalysis(Analysis{}); err != nil {
		t.Fatal(err)
	}
	items := []*Item{
		NewItem(Asset{ID: "a"}),
		done,
		NewItem(Asset{ID: "b"}),
		NewItem(Asset{ID: "a"}),
		nil,
		NewItem(Asset{ID: "c"}),
	}

	q := newPendingQueue(items)
	if q.size() != 3 {
		t.Fatalf("size() = %d, want 3", q.size())
	}

	var order []string
	for {
		it, ok := q.claim()
		if !ok {
			break
		}
		order = append(order, it.ID())
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("claimed %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("claim %d = %q, want %q", i, order[i], want[i])
		}
	}

	if q.pending() != 0 || q.remaining() != 3 {
		t.Errorf("pending=%d remaining=%d, want 0 and 3", q.pending(), q.remaining())
	}
	for range 3 {
		q.release()
	}
	if q.remaining() != 0 {
		t.Errorf("remaining after release = %d, want 0", q.remaining())
	}
	q.release()
	if q.remaining() != 0 {
		t.Errorf("extra release drove remaining to %d", q.remaining())
	}
}

func TestPendingQueue_ConcurrentClaimsAreExclusive(t *testing.T) {
	t.Parallel()

	const n = 1000
	items := make([]*Item, n)
	for i := range items {
		items[i] = NewItem(Asset{ID: "img-" + strconv.Itoa(i)})
	}
	q := newPendingQueue(items)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		seen  = make(map[*Item]int, n)
		total int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, ok := q.claim()
				if !ok {
					return
				}
				mu.Lock()
				seen[it]++
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if total != q.size() {
		t.Fatalf("claimed %d items, want %d", total, q.size())
	}
	for it, count := range seen {
		if count != 1 {
			t.Errorf("item %q claimed %d times", it.ID(), count)
		}
	}
}
