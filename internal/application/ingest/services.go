package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/application"
	domain "github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
	"github.com/bryanwahyu/automaton-vision/internal/observability/metrics"
)

// Pipeline stages, used in errors, logs and metrics.
const (
	StageDetectLabels     = "detect_labels"
	StageDetectModeration = "detect_moderation"
	StageSave             = "save"
)

// ErrEmptyBatch is returned when a trigger carries no notifications.
var ErrEmptyBatch = errors.New("no upload notifications in event")

// Notification names one uploaded object.
type Notification struct {
	BucketName string `json:"bucket_name"`
	ObjectKey  string `json:"object_key"`
}

// StageError reports which stage failed for which object.
type StageError struct {
	Stage string
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Summary of a fully processed batch.
type Summary struct {
	Processed  int
	AnalysisID domain.ImageID
}

// Result is what the invoking trigger receives.
type Result struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body"`
}

type SuccessBody struct {
	Message    string `json:"message"`
	AnalysisID string `json:"analysis_id"`
}

type FailureBody struct {
	Error string `json:"error"`
}

// Service runs the ingestion pipeline. It holds no per-invocation state and
// may be shared between concurrent triggers.
type Service struct {
	Repo    domain.Repository
	Vision  vision.Client
	Clock   application.Clock
	NewID   func() domain.ImageID
	Log     *zap.Logger
	Metrics *metrics.PipelineMetrics
}

// Handle processes a batch and shapes the outcome for the trigger.
func (s *Service) Handle(ctx context.Context, batch []Notification) Result {
	sum, err := s.Process(ctx, batch)
	if err != nil {
		s.Metrics.IncBatch("failure")
		logger.OrNop(s.Log).Error("ingest batch failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		return Result{StatusCode: http.StatusInternalServerError, Body: FailureBody{Error: err.Error()}}
	}
	s.Metrics.IncBatch("success")
	return Result{
		StatusCode: http.StatusOK,
		Body: SuccessBody{
			Message:    fmt.Sprintf("Successfully processed %d images", sum.Processed),
			AnalysisID: string(sum.AnalysisID),
		},
	}
}

// Process analyzes and stores every notification in order. The first failure
// aborts the rest of the batch; records already inserted stay.
func (s *Service) Process(ctx context.Context, batch []Notification) (Summary, error) {
	if len(batch) == 0 {
		return Summary{}, ErrEmptyBatch
	}

	var sum Summary
	for _, n := range batch {
		rec, err := s.Analyze(ctx, n)
		if err != nil {
			return sum, err
		}
		if err := s.save(ctx, rec); err != nil {
			return sum, err
		}
		sum.Processed++
		sum.AnalysisID = rec.ImageID
	}
	return sum, nil
}

// Analyze calls the vision service for one object and derives its record.
// Nothing is written.
func (s *Service) Analyze(ctx context.Context, n Notification) (*domain.AnalysisRecord, error) {
	log := logger.OrNop(s.Log).With(zap.String("bucket", n.BucketName), zap.String("key", n.ObjectKey))
	ref := vision.ImageRef{Bucket: n.BucketName, Key: n.ObjectKey}
	id := s.newID()

	log.Info("detecting objects", zap.String("image_id", string(id)))
	start := time.Now()
	labels, err := s.Vision.DetectLabels(ctx, ref, domain.MaxLabels, domain.MinLabelConfidence)
	s.Metrics.ObserveStage(StageDetectLabels, time.Since(start))
	if err != nil {
		return nil, &StageError{Stage: StageDetectLabels, Key: n.ObjectKey, Err: err}
	}
	objects := objectsFromLabels(labels)
	log.Info("objects detected", zap.Int("count", len(objects)))

	start = time.Now()
	modLabels, err := s.Vision.DetectModerationLabels(ctx, ref, domain.MinModerationConfidence)
	s.Metrics.ObserveStage(StageDetectModeration, time.Since(start))
	if err != nil {
		return nil, &StageError{Stage: StageDetectModeration, Key: n.ObjectKey, Err: err}
	}
	moderation := domain.NewModeration(flagsFromModeration(modLabels))
	log.Info("content safety checked", zap.Bool("is_safe", moderation.IsSafe), zap.Strings("flags", moderation.Flags))

	return &domain.AnalysisRecord{
		ImageID:           id,
		Filename:          n.ObjectKey,
		BucketName:        n.BucketName,
		UploadTime:        s.now(),
		ProcessingStatus:  domain.StatusCompleted,
		ObjectsDetected:   objects,
		ContentModeration: moderation,
	}, nil
}

func (s *Service) save(ctx context.Context, rec *domain.AnalysisRecord) error {
	start := time.Now()
	err := s.Repo.Insert(ctx, rec)
	s.Metrics.ObserveStage(StageSave, time.Since(start))
	if err != nil {
		return &StageError{Stage: StageSave, Key: rec.Filename, Err: err}
	}
	s.Metrics.IncImages()
	logger.OrNop(s.Log).Info("results saved", zap.String("image_id", string(rec.ImageID)), zap.String("key", rec.Filename))
	return nil
}

func (s *Service) newID() domain.ImageID {
	if s.NewID != nil {
		return s.NewID()
	}
	return domain.ImageID(uuid.New().String())
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

// objectsFromLabels keeps labels at or above the minimum confidence, in
// provider order, capped at MaxLabels.
func objectsFromLabels(labels []vision.Label) []domain.DetectedObject {
	out := make([]domain.DetectedObject, 0, len(labels))
	for _, l := range labels {
		if l.Confidence < domain.MinLabelConfidence {
			continue
		}
		out = append(out, domain.DetectedObject{Name: l.Name, Confidence: domain.RoundConfidence(l.Confidence)})
		if len(out) == domain.MaxLabels {
			break
		}
	}
	return out
}

func flagsFromModeration(labels []vision.ModerationLabel) []string {
	flags := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Confidence < domain.MinModerationConfidence {
			continue
		}
		flags = append(flags, l.Name)
	}
	return flags
}
