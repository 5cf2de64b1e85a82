package diag

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/infra/storage"
	"github.com/bryanwahyu/automaton-vision/internal/testutil"
)

type fakeLister struct {
	objs []storage.ObjectInfo
	err  error
}

func (f fakeLister) Bucket() string { return "uploads" }

func (f fakeLister) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return f.objs, f.err
}

func TestListBucket(t *testing.T) {
	var buf bytes.Buffer
	err := ListBucket(context.Background(), &buf, fakeLister{objs: []storage.ObjectInfo{
		{Key: "car.jpg", Size: 2048},
		{Key: "person.jpg", Size: 512},
	}}, "")
	require.NoError(t, err)
	assert.Equal(t, "Found uploaded images:\n  car.jpg (2048 bytes)\n  person.jpg (512 bytes)\n", buf.String())

	buf.Reset()
	require.NoError(t, ListBucket(context.Background(), &buf, fakeLister{}, ""))
	assert.Equal(t, "No images found in the bucket.\n", buf.String())

	err = ListBucket(context.Background(), &buf, fakeLister{err: errors.New("AccessDenied")}, "")
	assert.ErrorContains(t, err, "listing bucket uploads")
}

func TestSimulate(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	svc := &ingest.Service{
		Repo:   repo,
		Vision: &testutil.Vision{},
		NewID:  func() images.ImageID { return "sim-1" },
	}

	var buf bytes.Buffer
	res, err := Simulate(context.Background(), &buf, svc, "uploads", "car.jpg")
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.JSONEq(t, `{"statusCode":200,"body":{"message":"Successfully processed 1 images","analysis_id":"sim-1"}}`, buf.String())
	assert.Len(t, repo.All(), 1)
}

func TestAnalyze(t *testing.T) {
	v := &testutil.Vision{
		Labels: map[string][]vision.Label{
			"car.jpg": {{Name: "Car", Confidence: 98.54}, {Name: "Blur", Confidence: 50}},
		},
		Moderation: map[string][]vision.ModerationLabel{
			"person.jpg": {{Name: "Suggestive", Confidence: 72.0}},
		},
		Faces: map[string][]vision.Face{
			"person.jpg": {{AgeLow: 25, AgeHigh: 35, Gender: "Female", GenderConfidence: 99.9,
				Emotions: []vision.Emotion{{Type: "CALM", Confidence: 10}, {Type: "HAPPY", Confidence: 88}}}},
		},
		Errs: map[string]error{"missing.jpg": errors.New("InvalidS3ObjectException")},
	}

	var buf bytes.Buffer
	failed := Analyze(context.Background(), &buf, v, "uploads", []string{"car.jpg", "missing.jpg", "person.jpg"})
	assert.Equal(t, 1, failed)

	out := buf.String()
	assert.Contains(t, out, "   • Car: 98.5%\n")
	assert.NotContains(t, out, "Blur")
	assert.Contains(t, out, "   No faces detected\n")
	assert.Contains(t, out, "   Content is safe\n")
	assert.Contains(t, out, " Error analyzing missing.jpg: InvalidS3ObjectException\n")
	assert.Contains(t, out, "     Age: 25-35 years\n     Gender: Female (99.9%)\n     Emotion: HAPPY (88.0%)\n")
	assert.Contains(t, out, "   Content flags:\n     • Suggestive: 72.0%\n")
}
