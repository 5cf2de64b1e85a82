package query

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxSignedURLs caps how many records of a listed page get a viewing URL.
	MaxSignedURLs    = 10
	DefaultURLExpiry = time.Hour
)

// ImageDetail is a record as returned by Get, with its viewing URL (null when
// it could not be signed).
type ImageDetail struct {
	domain.AnalysisRecord
	ImageURL *string `json:"image_url"`
}

// ImageSummary is a listed record. ThumbnailURL is only signed for the first
// MaxSignedURLs records of a page.
type ImageSummary struct {
	domain.AnalysisRecord
	ThumbnailURL *string `json:"thumbnail_url"`
}

type GetResult struct {
	Image            ImageDetail `json:"image"`
	AnalysisComplete bool        `json:"analysis_complete"`
}

// ListQuery holds already parsed list parameters.
type ListQuery struct {
	Limit   int
	LastKey string
	Status  string
}

type ListResult struct {
	Images  []ImageSummary `json:"images"`
	Count   int            `json:"count"`
	HasMore bool           `json:"has_more"`
	NextKey string         `json:"next_key,omitempty"`
}

// Service implements the read side. It never writes to the repository and is
// safe for concurrent use.
type Service struct {
	Repo          domain.Repository
	Signer        domain.URLSigner
	DefaultBucket string
	URLExpiry     time.Duration
	Log           *zap.Logger
}

// Get returns one record with a fresh viewing URL, or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id domain.ImageID) (*GetResult, error) {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Normalize()

	return &GetResult{
		Image:            ImageDetail{AnalysisRecord: *rec, ImageURL: s.sign(ctx, rec)},
		AnalysisComplete: rec.Complete(),
	}, nil
}

// List returns one page in store order, re-sorted newest first within the page.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page, err := s.Repo.List(ctx, domain.ListFilter{
		Status:     domain.Status(q.Status),
		Limit:      clampLimit(q.Limit),
		StartAfter: domain.ImageID(q.LastKey),
	})
	if err != nil {
		return nil, err
	}

	recs := page.Records
	slices.SortStableFunc(recs, func(a, b *domain.AnalysisRecord) int {
		return b.UploadTime.Compare(a.UploadTime)
	})

	out := make([]ImageSummary, 0, len(recs))
	for i, rec := range recs {
		rec.Normalize()
		sum := ImageSummary{AnalysisRecord: *rec}
		if i < MaxSignedURLs {
			sum.ThumbnailURL = s.sign(ctx, rec)
		}
		out = append(out, sum)
	}

	return &ListResult{
		Images:  out,
		Count:   len(out),
		HasMore: page.HasMore(),
		NextKey: string(page.NextKey),
	}, nil
}

// sign is best effort: failures are logged and yield nil.
func (s *Service) sign(ctx context.Context, rec *domain.AnalysisRecord) *string {
	if s.Signer == nil {
		return nil
	}
	bucket := rec.BucketName
	if bucket == "" {
		bucket = s.DefaultBucket
	}
	expiry := s.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	u, err := s.Signer.PresignGet(ctx, bucket, rec.Filename, expiry)
	if err != nil {
		logger.OrNop(s.Log).Warn("could not generate presigned url",
			zap.String("image_id", string(rec.ImageID)),
			zap.String("key", rec.Filename),
			zap.Error(err))
		return nil
	}
	return &u
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
