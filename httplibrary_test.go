package photohistory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTPLibrary_Fetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing User-Agent")
		}
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10})
	}))
	defer srv.Close()

	lib := &HTTPLibrary{Cache: NewMemoryCache(0, 0)}
	asset := Asset{ID: "photo-1", Source: srv.URL + "/photo.jpg"}

	img, err := lib.Fetch(context.Background(), asset)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q, want image/jpeg", img.MIMEType)
	}
	if len(img.Data) != 6 {
		t.Errorf("len(Data) = %d, want 6", len(img.Data))
	}
	if img.Orientation != OrientationUp {
		t.Errorf("Orientation = %s, want up", img.Orientation)
	}

	if _, err := lib.Fetch(context.Background(), asset); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 with cache", hits.Load())
	}
}

func TestHTTPLibrary_FetchNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		lib     HTTPLibrary
	}{
		{
			name: "404",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.NotFound(w, nil)
			},
		},
		{
			name: "non-image content type",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html></html>"))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "image/png")
			},
		},
		{
			name: "body over limit",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write(make([]byte, 64))
			},
			lib: HTTPLibrary{MaxBytes: 32},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			lib := tc.lib
			_, err := lib.Fetch(context.Background(), Asset{ID: srv.URL + "/img"})
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Fetch() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestHTTPLibrary_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	lib := &HTTPLibrary{}
	_, err := lib.Fetch(context.Background(), Asset{ID: "x", Source: url})
	if err == nil {
		t.Fatal("Fetch() against a closed server succeeded")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("transport error reported as ErrNotFound: %v", err)
	}
}
