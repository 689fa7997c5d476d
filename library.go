package photohistory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Library when it has no data for an asset.
var ErrNotFound = errors.New("photohistory: image data not found")

// Orientation is the EXIF orientation of the stored image bytes (1..8).
type Orientation uint8

const (
	OrientationUp            Orientation = iota + 1 // 1: no transform
	OrientationUpMirrored                           // 2: flipped horizontally
	OrientationDown                                 // 3: rotated 180°
	OrientationDownMirrored                         // 4: flipped vertically
	OrientationLeftMirrored                         // 5: transposed
	OrientationRight                                // 6: rotated 90° CW
	OrientationRightMirrored                        // 7: transversed
	OrientationLeft                                 // 8: rotated 90° CCW
)

// Valid reports whether o is one of the eight EXIF orientations.
func (o Orientation) Valid() bool {
	return o >= OrientationUp && o <= OrientationLeft
}

func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationUpMirrored:
		return "up-mirrored"
	case OrientationDown:
		return "down"
	case OrientationDownMirrored:
		return "down-mirrored"
	case OrientationLeftMirrored:
		return "left-mirrored"
	case OrientationRight:
		return "right"
	case OrientationRightMirrored:
		return "right-mirrored"
	case OrientationLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Asset is the raw source handle an Item is built from.
type Asset struct {
	ID          string    // unique within a collection
	HasLocation bool      // derived from source metadata
	Latitude    float64   // valid only when HasLocation
	Longitude   float64   // valid only when HasLocation
	TakenAt     time.Time // zero when unknown
	Source      string    // library-specific locator (file path, URL)
}

// ImageData holds fetched image bytes.
type ImageData struct {
	Data        []byte
	MIMEType    string
	Orientation Orientation
}

// Library supplies raw image bytes for an asset. Implementations may be
// slow (disk or network backed) and must honor ctx cancellation.
// Fetch returns an error wrapping ErrNotFound when no data is available.
type Library interface {
	Fetch(ctx context.Context, asset Asset) (*ImageData, error)
}

// LibraryFunc adapts a plain function to the Library interface.
type LibraryFunc func(ctx context.Context, asset Asset) (*ImageData, error)

// Fetch calls f(ctx, asset).
func (f LibraryFunc) Fetch(ctx context.Context, asset Asset) (*ImageData, error) {
	return f(ctx, asset)
}
