package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/application"
	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/observability/metrics"
	fakes "github.com/bryanwahyu/automaton-vision/internal/testutil"
)

var now = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sequentialIDs() func() images.ImageID {
	n := 0
	return func() images.ImageID {
		n++
		return images.ImageID(fmt.Sprintf("id-%d", n))
	}
}

func newService(repo images.Repository, v vision.Client) *ingest.Service {
	return &ingest.Service{
		Repo:   repo,
		Vision: v,
		Clock:  application.FixedClock{T: now},
		NewID:  sequentialIDs(),
	}
}

func TestHandleStoresCompletedRecord(t *testing.T) {
	t.Parallel()

	repo := fakes.NewMemoryRepository()
	v := &fakes.Vision{
		Labels: map[string][]vision.Label{
			"car.jpg": {{Name: "Car", Confidence: 95.0}, {Name: "Tire", Confidence: 72.0}},
		},
	}
	svc := newService(repo, v)

	res := svc.Handle(context.Background(), []ingest.Notification{{BucketName: "example-bucket", ObjectKey: "car.jpg"}})

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, ingest.SuccessBody{Message: "Successfully processed 1 images", AnalysisID: "id-1"}, res.Body)

	stored := repo.All()
	require.Len(t, stored, 1)
	rec := stored[0]
	assert.Equal(t, images.ImageID("id-1"), rec.ImageID)
	assert.Equal(t, "car.jpg", rec.Filename)
	assert.Equal(t, "example-bucket", rec.BucketName)
	assert.Equal(t, now, rec.UploadTime)
	assert.Equal(t, images.StatusCompleted, rec.ProcessingStatus)
	assert.Equal(t, []images.DetectedObject{{Name: "Car", Confidence: 95.0}, {Name: "Tire", Confidence: 72.0}}, rec.ObjectsDetected)
	assert.Equal(t, images.ContentModeration{IsSafe: true, Flags: []string{}}, rec.ContentModeration)
}

func TestAnalyzeDerivesRecord(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		labels     []vision.Label
		moderation []vision.ModerationLabel

		wantObjects []images.DetectedObject
		wantFlags   []string
	}{
		"Rounds confidence to one decimal": {
			labels:      []vision.Label{{Name: "Dog", Confidence: 88.8765}},
			wantObjects: []images.DetectedObject{{Name: "Dog", Confidence: 88.9}},
			wantFlags:   []string{},
		},
		"Drops labels below the minimum confidence": {
			labels:      []vision.Label{{Name: "Cat", Confidence: 69.99}, {Name: "Sofa", Confidence: 70.0}},
			wantObjects: []images.DetectedObject{{Name: "Sofa", Confidence: 70.0}},
			wantFlags:   []string{},
		},
		"Caps labels at the maximum": {
			labels: func() []vision.Label {
				var ls []vision.Label
				for i := range 12 {
					ls = append(ls, vision.Label{Name: fmt.Sprintf("L%d", i), Confidence: 99})
				}
				return ls
			}(),
			wantObjects: func() []images.DetectedObject {
				var objs []images.DetectedObject
				for i := range 10 {
					objs = append(objs, images.DetectedObject{Name: fmt.Sprintf("L%d", i), Confidence: 99})
				}
				return objs
			}(),
			wantFlags: []string{},
		},
		"Flags moderation labels at or above the minimum": {
			moderation: []vision.ModerationLabel{
				{Name: "Violence", Confidence: 61.2},
				{Name: "Weapons", ParentName: "Violence", Confidence: 59.9},
			},
			wantObjects: []images.DetectedObject{},
			wantFlags:   []string{"Violence"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v := &fakes.Vision{
				Labels:     map[string][]vision.Label{"img.png": tc.labels},
				Moderation: map[string][]vision.ModerationLabel{"img.png": tc.moderation},
			}
			svc := newService(fakes.NewMemoryRepository(), v)

			rec, err := svc.Analyze(context.Background(), ingest.Notification{BucketName: "b", ObjectKey: "img.png"})
			require.NoError(t, err)

			assert.Equal(t, tc.wantObjects, rec.ObjectsDetected)
			assert.Equal(t, tc.wantFlags, rec.ContentModeration.Flags)
			assert.Equal(t, len(tc.wantFlags) == 0, rec.ContentModeration.IsSafe, "is_safe must match empty flags")
			for _, o := range rec.ObjectsDetected {
				assert.GreaterOrEqual(t, o.Confidence, images.MinLabelConfidence)
			}
		})
	}
}

func TestProcessKeepsNotificationOrder(t *testing.T) {
	t.Parallel()

	repo := fakes.NewMemoryRepository()
	v := &fakes.Vision{}
	svc := newService(repo, v)

	sum, err := svc.Process(context.Background(), []ingest.Notification{
		{BucketName: "b", ObjectKey: "first.jpg"},
		{BucketName: "b", ObjectKey: "second.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, ingest.Summary{Processed: 2, AnalysisID: "id-2"}, sum)
	assert.Equal(t, []string{
		"labels:b/first.jpg", "moderation:b/first.jpg",
		"labels:b/second.jpg", "moderation:b/second.jpg",
	}, v.Calls)
}

func TestSameImageTwiceCreatesTwoRecords(t *testing.T) {
	t.Parallel()

	repo := fakes.NewMemoryRepository()
	svc := &ingest.Service{Repo: repo, Vision: &fakes.Vision{}}
	batch := []ingest.Notification{{BucketName: "b", ObjectKey: "car.jpg"}}

	require.Equal(t, http.StatusOK, svc.Handle(context.Background(), batch).StatusCode)
	require.Equal(t, http.StatusOK, svc.Handle(context.Background(), batch).StatusCode)

	stored := repo.All()
	require.Len(t, stored, 2)
	assert.NotEqual(t, stored[0].ImageID, stored[1].ImageID)
}

func TestProcessFailures(t *testing.T) {
	t.Parallel()

	visionErr := errors.New("rekognition unreachable")

	tests := map[string]struct {
		batch     []ingest.Notification
		visionErr map[string]error
		failAfter int

		wantStage  string
		wantStored int
		wantCalls  int
	}{
		"Empty batch": {},
		"Label detection failure aborts the remainder": {
			batch:     []ingest.Notification{{BucketName: "b", ObjectKey: "ok.jpg"}, {BucketName: "b", ObjectKey: "bad.jpg"}, {BucketName: "b", ObjectKey: "never.jpg"}},
			visionErr: map[string]error{"bad.jpg": visionErr},

			wantStage:  ingest.StageDetectLabels,
			wantStored: 1,
			wantCalls:  3,
		},
		"Store failure aborts the remainder": {
			batch:     []ingest.Notification{{BucketName: "b", ObjectKey: "one.jpg"}, {BucketName: "b", ObjectKey: "two.jpg"}, {BucketName: "b", ObjectKey: "three.jpg"}},
			failAfter: 1,

			wantStage:  ingest.StageSave,
			wantStored: 1,
			wantCalls:  4,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			repo := fakes.NewMemoryRepository()
			repo.FailInsertAfter = tc.failAfter
			v := &fakes.Vision{Errs: tc.visionErr}
			svc := newService(repo, v)

			_, err := svc.Process(context.Background(), tc.batch)
			require.Error(t, err)
			if tc.wantStage == "" {
				require.ErrorIs(t, err, ingest.ErrEmptyBatch)
			} else {
				var stageErr *ingest.StageError
				require.ErrorAs(t, err, &stageErr)
				assert.Equal(t, tc.wantStage, stageErr.Stage)
			}

			assert.Len(t, repo.All(), tc.wantStored)
			assert.Len(t, v.Calls, tc.wantCalls)
		})
	}
}

func TestHandleEmptyBatch(t *testing.T) {
	t.Parallel()

	res := newService(fakes.NewMemoryRepository(), &fakes.Vision{}).Handle(context.Background(), nil)

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, ingest.FailureBody{Error: ingest.ErrEmptyBatch.Error()}, res.Body)
}

func TestHandleFailureBodyCarriesError(t *testing.T) {
	t.Parallel()

	v := &fakes.Vision{Errs: map[string]error{"x.jpg": vision.ErrQuotaExceeded}}
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(reg)
	require.NoError(t, err)

	svc := newService(fakes.NewMemoryRepository(), v)
	svc.Metrics = m

	res := svc.Handle(context.Background(), []ingest.Notification{{BucketName: "b", ObjectKey: "x.jpg"}})

	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	body, ok := res.Body.(ingest.FailureBody)
	require.True(t, ok, "failure body expected, got %T", res.Body)
	assert.Contains(t, body.Error, "vision quota exceeded")
	assert.Contains(t, body.Error, "x.jpg")
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues("failure")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.ImagesProcessed), 0)
}
