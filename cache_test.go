package photohistory

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	key := c.Key("labels", "abc")
	if key != "photohistory:labels:abc" {
		t.Errorf("Key() = %q", key)
	}

	var miss []Label
	if c.Get(ctx, key, &miss) {
		t.Fatal("Get() hit on an empty cache")
	}

	want := []Label{{Name: "outdoor", Confidence: 0.95}}
	c.Set(ctx, key, want)
	var got []Label
	if !c.Get(ctx, key, &got) {
		t.Fatal("Get() missed after Set")
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_TypeMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	c.Set(ctx, "k", 3)

	var s string
	if c.Get(ctx, "k", &s) {
		t.Error("Get() into a string succeeded for an int value")
	}
	var n int
	if c.Get(ctx, "k", n) {
		t.Error("Get() into a non-pointer succeeded")
	}
	if !c.Get(ctx, "k", &n) || n != 3 {
		t.Errorf("Get() = %d, want 3", n)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(10*time.Millisecond, 0)
	c.Set(ctx, "k", "v")
	time.Sleep(30 * time.Millisecond)

	var v string
	if c.Get(ctx, "k", &v) {
		t.Error("Get() returned an expired entry")
	}
}
