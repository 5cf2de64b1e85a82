package images

import (
	"context"
	"time"
)

// Repository port for the result store. Records are insert-only.
type Repository interface {
	Insert(ctx context.Context, r *AnalysisRecord) error
	Get(ctx context.Context, id ImageID) (*AnalysisRecord, error)
	List(ctx context.Context, f ListFilter) (Page, error)
}

// URLSigner issues time-limited viewing URLs for stored objects.
type URLSigner interface {
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
