package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
)

func TestRowRoundTrip(t *testing.T) {
	rec := &images.AnalysisRecord{
		ImageID:           "id-1",
		Filename:          "cat.jpg",
		UploadTime:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ProcessingStatus:  images.StatusCompleted,
		ObjectsDetected:   []images.DetectedObject{{Name: "Cat", Confidence: 99.2}},
		ContentModeration: images.NewModeration(nil),
	}
	row, err := FromRecord(rec)
	require.NoError(t, err)
	assert.False(t, row.BucketName.Valid)
	assert.JSONEq(t, `[]`, string(row.Flags))

	got, err := row.Record()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRowRecordErrors(t *testing.T) {
	valid := Row{ImageID: "id", Filename: "f.jpg", UploadTime: time.Now(), Status: "completed"}

	tests := []struct {
		name string
		edit func(*Row)
	}{
		{"missing status", func(r *Row) { r.Status = "" }},
		{"missing upload time", func(r *Row) { r.UploadTime = time.Time{} }},
		{"bad objects", func(r *Row) { r.Objects = []byte(`{`) }},
		{"bad flags", func(r *Row) { r.Flags = []byte(`"x"`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := valid
			tt.edit(&row)
			_, err := row.Record()
			assert.ErrorIs(t, err, images.ErrInvalidRecord)
		})
	}
}
