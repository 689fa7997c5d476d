package photohistory

import "context"

// Labeler classifies an image into confidence-scored semantic labels.
// The pipeline filters the result with FilterConfident before storing it.
type Labeler interface {
	ClassifyLabels(ctx context.Context, data []byte, orientation Orientation) ([]Label, error)
}

// FaceDetector counts detected face regions in an image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, data []byte, orientation Orientation) (int, error)
}

// LabelerFunc adapts a plain function to the Labeler interface.
type LabelerFunc func(ctx context.Context, data []byte, orientation Orientation) ([]Label, error)

// ClassifyLabels calls f(ctx, data, orientation).
func (f LabelerFunc) ClassifyLabels(ctx context.Context, data []byte, orientation Orientation) ([]Label, error) {
	return f(ctx, data, orientation)
}

// FaceDetectorFunc adapts a plain function to the FaceDetector interface.
type FaceDetectorFunc func(ctx context.Context, data []byte, orientation Orientation) (int, error)

// DetectFaces calls f(ctx, data, orientation).
func (f FaceDetectorFunc) DetectFaces(ctx context.Context, data []byte, orientation Orientation) (int, error) {
	return f(ctx, data, orientation)
}
