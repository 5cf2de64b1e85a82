package vision

import "context"

// ImageRef points at an image held in the object store.
type ImageRef struct {
	Bucket string
	Key    string
}

// Label is a detected object or scene label.
type Label struct {
	Name       string
	Confidence float64
}

// ModerationLabel is a detected unsafe-content category.
type ModerationLabel struct {
	Name       string
	ParentName string
	Confidence float64
}

type Emotion struct {
	Type       string
	Confidence float64
}

// Face holds the attributes reported for one detected face.
type Face struct {
	AgeLow           int
	AgeHigh          int
	Gender           string
	GenderConfidence float64
	Emotions         []Emotion
}

// TopEmotion returns the emotion with the highest confidence.
func (f Face) TopEmotion() (Emotion, bool) {
	if len(f.Emotions) == 0 {
		return Emotion{}, false
	}
	top := f.Emotions[0]
	for _, e := range f.Emotions[1:] {
		if e.Confidence > top.Confidence {
			top = e
		}
	}
	return top, true
}

// Client port for the managed vision service.
type Client interface {
	DetectLabels(ctx context.Context, ref ImageRef, maxLabels int, minConfidence float64) ([]Label, error)
	DetectModerationLabels(ctx context.Context, ref ImageRef, minConfidence float64) ([]ModerationLabel, error)
	DetectFaces(ctx context.Context, ref ImageRef) ([]Face, error)
}
