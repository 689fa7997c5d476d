package photohistory

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func viewIDs(items []*Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID()
	}
	return ids
}

func newTestCollection(t *testing.T, opts ...CollectionOption) (*Collection, *stubClassifier) {
	t.Helper()

	assets := append(located("sunset", "crowd", "selfie", "receipt"), Asset{ID: "kitchen"})
	cls := newStubClassifier()
	outdoor := Label{Name: "outdoor", Confidence: 0.97}
	people := Label{Name: "people", Confidence: 0.93}
	cls.labels["sunset"] = []Label{outdoor}
	cls.labels["crowd"] = []Label{outdoor, people}
	cls.labels["selfie"] = []Label{outdoor, people}
	cls.faces["selfie"] = 2
	cls.labels["receipt"] = []Label{{Name: "document", Confidence: 0.99}}

	c, err := NewCollection(context.Background(), assets, testConfig(newStubLibrary(), cls, 3), opts...)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("collection did not finish: %v", err)
	}
	return c, cls
}

func TestCollection_UnfilteredViewKeepsOrder(t *testing.T) {
	t.Parallel()

	c, _ := newTestCollection(t)
	want := []string{"sunset", "crowd", "selfie", "receipt", "kitchen"}
	if got := viewIDs(c.View()); !reflect.DeepEqual(got, want) {
		t.Errorf("View() = %v, want %v", got, want)
	}
	if got := c.Title(); got != "5 Photos" {
		t.Errorf("Title() = %q, want %q", got, "5 Photos")
	}
	if c.IsAnalyzing() {
		t.Error("IsAnalyzing() = true after Wait")
	}
}

func TestCollection_FilterAndPolicyToggles(t *testing.T) {
	t.Parallel()

	c, _ := newTestCollection(t, WithFilter(true))

	if got := viewIDs(c.View()); !reflect.DeepEqual(got, []string{"sunset"}) {
		t.Errorf("strict view = %v, want [sunset]", got)
	}
	if got := c.Title(); got != "1 Filtered Photos" {
		t.Errorf("Title() = %q", got)
	}

	c.SetPolicy(Policy{AllowUnrecognizablePeople: true})
	if got := viewIDs(c.View()); !reflect.DeepEqual(got, []string{"sunset", "crowd"}) {
		t.Errorf("lenient view = %v, want [sunset crowd]", got)
	}

	c.SetFiltered(false)
	if c.IsFiltered() {
		t.Error("IsFiltered() = true after SetFiltered(false)")
	}
	if got := len(c.View()); got != 5 {
		t.Errorf("unfiltered view has %d items, want 5", got)
	}

	c.SetFiltered(true)
	if !c.Policy().AllowUnrecognizablePeople {
		t.Error("policy lost across filter toggles")
	}
	if got := len(c.View()); got != 2 {
		t.Errorf("refiltered view has %d items, want 2", got)
	}
}

func TestCollection_Verdict(t *testing.T) {
	t.Parallel()

	c, _ := newTestCollection(t)

	tests := []struct {
		id   string
		want string
	}{
		{"sunset", "matches"},
		{"selfie", "does not match: containsPeople"},
		{"receipt", "does not match: notOutdoors, isDocument"},
		{"kitchen", "does not match: notOutdoors"},
	}
	for _, tc := range tests {
		v, ok := c.Verdict(tc.id)
		if !ok {
			t.Fatalf("Verdict(%q) not found", tc.id)
		}
		if got := v.Explain(); got != tc.want {
			t.Errorf("Verdict(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
	if _, ok := c.Verdict("missing"); ok {
		t.Error("Verdict(missing) reported found")
	}
}

func TestCollection_OnChangeFiresPerProgressAndToggle(t *testing.T) {
	t.Parallel()

	var changes atomic.Int64
	c, _ := newTestCollection(t, WithOnChange(func() { changes.Add(1) }))

	// Five progress ticks plus the finish notification.
	if got := changes.Load(); got != 6 {
		t.Errorf("OnChange fired %d times during analysis, want 6", got)
	}
	c.SetFiltered(true)
	if got := changes.Load(); got != 7 {
		t.Errorf("OnChange fired %d times after toggle, want 7", got)
	}
}

func TestCollection_Located(t *testing.T) {
	t.Parallel()

	c, _ := newTestCollection(t)
	points := c.Located()
	if len(points) != 4 {
		t.Fatalf("Located() returned %d points, want 4", len(points))
	}
	if points[0].ID != "sunset" || points[0].Latitude != 51.05 || points[0].Longitude != 3.72 {
		t.Errorf("first point = %+v", points[0])
	}

	c.SetFiltered(true)
	if got := c.Located(); len(got) != 1 {
		t.Errorf("filtered Located() = %+v, want one point", got)
	}
}

func TestCollection_DuplicateAssetIDs(t *testing.T) {
	t.Parallel()

	assets := []Asset{
		{ID: "a", HasLocation: true, Latitude: 1},
		{ID: "b", HasLocation: true},
		{ID: "a", HasLocation: true, Latitude: 2},
	}
	lib := newStubLibrary()
	c, err := NewCollection(context.Background(), assets, testConfig(lib, newStubClassifier(), 2))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if got := viewIDs(c.Items()); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Items() = %v, want [a b]", got)
	}
	it, ok := c.Item("a")
	if !ok || it.Asset().Latitude != 1 {
		t.Errorf("Item(a) = %+v, want the first occurrence", it)
	}
	if lib.fetchCount("a") != 1 {
		t.Errorf("a fetched %d times, want 1", lib.fetchCount("a"))
	}
}

func TestCollection_TitleWhileAnalyzing(t *testing.T) {
	t.Parallel()

	lib := newStubLibrary()
	lib.delay = 5 * time.Second
	c, err := NewCollection(context.Background(), located("a", "b", "c"), testConfig(lib, newStubClassifier(), 2))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	if got := c.Title(); got != "Analyzing 3/3" {
		t.Errorf("Title() = %q, want %q", got, "Analyzing 3/3")
	}
	if !c.IsAnalyzing() {
		t.Error("IsAnalyzing() = false while fetches are blocked")
	}
}

func TestNewCollection_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCollection(context.Background(), located("a"), Config{})
	if err == nil {
		t.Fatal("NewCollection() with empty config should fail")
	}
}
