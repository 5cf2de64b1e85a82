// Package events turns object store upload notifications into ingestion batches.
package events

import (
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
)

// Handler runs one ingestion batch.
type Handler interface {
	Handle(ctx context.Context, batch []ingest.Notification) ingest.Result
}

// FromNotification maps S3-style event records to pipeline notifications.
// Object keys arrive URL-encoded and are decoded here.
func FromNotification(info notification.Info) ([]ingest.Notification, error) {
	if info.Err != nil {
		return nil, info.Err
	}
	out := make([]ingest.Notification, 0, len(info.Records))
	for i, rec := range info.Records {
		bucket := rec.S3.Bucket.Name
		if bucket == "" || rec.S3.Object.Key == "" {
			return nil, fmt.Errorf("record %d: missing bucket name or object key", i)
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: decoding key %q: %w", i, rec.S3.Object.Key, err)
		}
		out = append(out, ingest.Notification{BucketName: bucket, ObjectKey: key})
	}
	return out, nil
}

// Consume drives h with every batch received on src until src closes or ctx
// is done. Listener errors are logged and skipped.
func Consume(ctx context.Context, src <-chan notification.Info, h Handler, log *zap.Logger) {
	log = logger.OrNop(log)
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-src:
			if !ok {
				return
			}
			batch, err := FromNotification(info)
			if err != nil {
				log.Warn("skipping bucket notification", zap.Error(err))
				continue
			}
			if len(batch) == 0 {
				continue
			}
			res := h.Handle(ctx, batch)
			log.Info("ingest batch handled", zap.Int("records", len(batch)), zap.Int("status_code", res.StatusCode))
		}
	}
}
