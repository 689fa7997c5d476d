package photohistory

import (
	"bytes"
	"math"
	"strings"
	"time"

	"github.com/bep/imagemeta"
)

// PhotoMetadata holds the EXIF fields the collection needs: location,
// orientation and capture time.
type PhotoMetadata struct {
	HasLocation bool
	Latitude    float64
	Longitude   float64
	Orientation Orientation // OrientationUp when absent
	TakenAt     time.Time   // zero when absent
}

// wantedEXIF lists every EXIF tag we care about. GPS tags feed
// imagemeta.Tags.GetLatLong, date tags feed GetDateTime.
var wantedEXIF = map[string]bool{
	"Orientation":        true,
	"GPSLatitude":        true,
	"GPSLatitudeRef":     true,
	"GPSLongitude":       true,
	"GPSLongitudeRef":    true,
	"DateTimeOriginal":   true,
	"DateTime":           true,
	"OffsetTimeOriginal": true,
	"OffsetTime":         true,
}

// ExtractPhotoMetadata parses EXIF metadata from raw image bytes. The
// container format is sniffed from data, falling back to the extension of
// name. Returns nil if the data is empty, the format has no EXIF decoder, or
// decoding fails. Graceful degradation: never returns an error.
func ExtractPhotoMetadata(data []byte, name string) *PhotoMetadata {
	if len(data) == 0 {
		return nil
	}
	format, ok := metadataFormat(DetectMIME(data, name))
	if !ok {
		return nil
	}

	var tags imagemeta.Tags
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && wantedEXIF[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			tags.Add(ti)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil
	}

	meta := &PhotoMetadata{Orientation: OrientationUp}
	if !found {
		return meta
	}

	if lat, long, err := tags.GetLatLong(); err == nil && validCoordinate(lat, long) {
		meta.HasLocation = true
		meta.Latitude = lat
		meta.Longitude = long
	}
	if t, err := tags.GetDateTime(); err == nil && !t.IsZero() {
		meta.TakenAt = t
	}
	if ti, ok := tags.EXIF()["Orientation"]; ok {
		if o := Orientation(tagValueInt(ti.Value)); o.Valid() {
			meta.Orientation = o
		}
	}

	return meta
}

// metadataFormat maps a MIME type to the imagemeta container decoder.
func metadataFormat(mimeType string) (imagemeta.ImageFormat, bool) {
	switch mimeType {
	case "image/jpeg":
		return imagemeta.JPEG, true
	case "image/png":
		return imagemeta.PNG, true
	case "image/webp":
		return imagemeta.WebP, true
	case "image/tiff":
		return imagemeta.TIFF, true
	case "image/heic", "image/heif":
		return imagemeta.HEIF, true
	case "image/avif":
		return imagemeta.AVIF, true
	default:
		return imagemeta.ImageFormatAuto, false
	}
}

// validCoordinate rejects NaN, out-of-range and the 0,0 placeholder some
// cameras write when no fix is available.
func validCoordinate(lat, long float64) bool {
	if math.IsNaN(lat) || math.IsNaN(long) {
		return false
	}
	if lat < -90 || lat > 90 || long < -180 || long > 180 {
		return false
	}
	return lat != 0 || long != 0
}

// tagValueInt extracts an integer from a tag value.
// EXIF SHORT values may arrive as any unsigned or signed width.
func tagValueInt(v any) int {
	switch val := v.(type) {
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case int:
		return val
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	case []any:
		if len(val) > 0 {
			return tagValueInt(val[0])
		}
		return 0
	case string:
		return orientationByName(val)
	default:
		return 0
	}
}

func orientationByName(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "horizontal (normal)":
		return 1
	case "3", "rotate 180":
		return 3
	case "6", "rotate 90 cw":
		return 6
	case "8", "rotate 270 cw":
		return 8
	default:
		return 0
	}
}
