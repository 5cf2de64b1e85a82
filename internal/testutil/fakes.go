// Package testutil holds in-memory fakes of the domain ports for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
)

// MemoryRepository is an images.Repository kept in a map, listed in id order.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[images.ImageID]images.AnalysisRecord

	// InsertErr, GetErr and ListErr are returned instead of touching the map when set.
	InsertErr error
	GetErr    error
	ListErr   error
	// FailInsertAfter makes every insert after the first N fail, when positive.
	FailInsertAfter int

	inserts int
}

func NewMemoryRepository(recs ...*images.AnalysisRecord) *MemoryRepository {
	r := &MemoryRepository{records: make(map[images.ImageID]images.AnalysisRecord)}
	for _, rec := range recs {
		r.records[rec.ImageID] = *rec
	}
	return r
}

func (r *MemoryRepository) Insert(_ context.Context, rec *images.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InsertErr != nil {
		return r.InsertErr
	}
	if r.FailInsertAfter > 0 && r.inserts >= r.FailInsertAfter {
		return errors.New("store unavailable")
	}
	if _, ok := r.records[rec.ImageID]; ok {
		return images.ErrAlreadyExists
	}
	r.records[rec.ImageID] = *rec
	r.inserts++
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id images.ImageID) (*images.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.GetErr != nil {
		return nil, r.GetErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, images.ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) List(_ context.Context, f images.ListFilter) (images.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ListErr != nil {
		return images.Page{}, r.ListErr
	}
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var page images.Page
	for _, id := range ids {
		if f.StartAfter != "" && id <= string(f.StartAfter) {
			continue
		}
		rec := r.records[images.ImageID(id)]
		if f.Status != "" && rec.ProcessingStatus != f.Status {
			continue
		}
		if f.Limit > 0 && len(page.Records) == f.Limit {
			page.NextKey = page.Records[len(page.Records)-1].ImageID
			break
		}
		page.Records = append(page.Records, &rec)
	}
	return page, nil
}

// All returns a copy of every stored record, in id order.
func (r *MemoryRepository) All() []images.AnalysisRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]images.AnalysisRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImageID < out[j].ImageID })
	return out
}

// Vision is a scripted vision.Client keyed by object key.
type Vision struct {
	mu         sync.Mutex
	Labels     map[string][]vision.Label
	Moderation map[string][]vision.ModerationLabel
	Faces      map[string][]vision.Face
	// Errs fails every call for the given key.
	Errs map[string]error
	// Delay holds every call this long, or until ctx is done.
	Delay time.Duration

	Calls []string
}

func (v *Vision) record(ctx context.Context, call string, ref vision.ImageRef) error {
	if v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls = append(v.Calls, call+":"+ref.Bucket+"/"+ref.Key)
	return v.Errs[ref.Key]
}

func (v *Vision) DetectLabels(ctx context.Context, ref vision.ImageRef, _ int, _ float64) ([]vision.Label, error) {
	if err := v.record(ctx, "labels", ref); err != nil {
		return nil, err
	}
	return v.Labels[ref.Key], nil
}

func (v *Vision) DetectModerationLabels(ctx context.Context, ref vision.ImageRef, _ float64) ([]vision.ModerationLabel, error) {
	if err := v.record(ctx, "moderation", ref); err != nil {
		return nil, err
	}
	return v.Moderation[ref.Key], nil
}

func (v *Vision) DetectFaces(ctx context.Context, ref vision.ImageRef) ([]vision.Face, error) {
	if err := v.record(ctx, "faces", ref); err != nil {
		return nil, err
	}
	return v.Faces[ref.Key], nil
}

// Signer is a deterministic images.URLSigner. Keys listed in Fail return an error.
type Signer struct {
	Fail map[string]bool

	mu    sync.Mutex
	Calls int
}

func (s *Signer) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()

	if s.Fail[key] {
		return "", fmt.Errorf("presign %s: access denied", key)
	}
	return fmt.Sprintf("https://%s.example.test/%s?X-Amz-Expires=%d", bucket, key, int(expiry.Seconds())), nil
}

// Record builds a completed record for tests.
func Record(id, filename string, uploaded time.Time) *images.AnalysisRecord {
	return &images.AnalysisRecord{
		ImageID:           images.ImageID(id),
		Filename:          filename,
		BucketName:        "example-bucket",
		UploadTime:        uploaded,
		ProcessingStatus:  images.StatusCompleted,
		ObjectsDetected:   []images.DetectedObject{},
		ContentModeration: images.NewModeration(nil),
	}
}
