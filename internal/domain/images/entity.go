package images

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ImageID identifies one analysis record
type ImageID string

// Status enum
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Thresholds applied when deriving a record from the vision results.
const (
	MaxLabels               = 10
	MinLabelConfidence      = 70.0
	MinModerationConfidence = 60.0
)

// DetectedObject value object
type DetectedObject struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ContentModeration value object
type ContentModeration struct {
	IsSafe bool     `json:"is_safe"`
	Flags  []string `json:"flags"`
}

// AnalysisRecord is the aggregate persisted once per analyzed upload.
type AnalysisRecord struct {
	ImageID           ImageID           `json:"image_id"`
	Filename          string            `json:"filename"`
	BucketName        string            `json:"bucket_name"`
	UploadTime        time.Time         `json:"upload_time"`
	ProcessingStatus  Status            `json:"processing_status"`
	ObjectsDetected   []DetectedObject  `json:"objects_detected"`
	ContentModeration ContentModeration `json:"content_moderation"`
}

// NewModeration builds the moderation verdict from the flagged label names.
func NewModeration(flags []string) ContentModeration {
	if flags == nil {
		flags = []string{}
	}
	return ContentModeration{IsSafe: len(flags) == 0, Flags: flags}
}

// RoundConfidence keeps one decimal place, as stored.
func RoundConfidence(c float64) float64 {
	return math.Round(c*10) / 10
}

// Complete reports whether analysis finished for the record.
func (r *AnalysisRecord) Complete() bool {
	return r.ProcessingStatus == StatusCompleted
}

// Validate checks the fields every stored record must carry.
func (r *AnalysisRecord) Validate() error {
	var missing []string
	if r.ImageID == "" {
		missing = append(missing, "image_id")
	}
	if r.Filename == "" {
		missing = append(missing, "filename")
	}
	if r.UploadTime.IsZero() {
		missing = append(missing, "upload_time")
	}
	if r.ProcessingStatus == "" {
		missing = append(missing, "processing_status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return nil
}

// Normalize replaces nil slices so records always encode as arrays.
func (r *AnalysisRecord) Normalize() {
	if r.ObjectsDetected == nil {
		r.ObjectsDetected = []DetectedObject{}
	}
	if r.ContentModeration.Flags == nil {
		r.ContentModeration.Flags = []string{}
	}
}
