// Package diag holds the operator checks behind cmd/diag: bucket listing, a
// local pipeline trigger and an ad hoc analysis printout.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/infra/events"
	"github.com/bryanwahyu/automaton-vision/internal/infra/storage"
)

// Lister lists the objects of the configured bucket.
type Lister interface {
	Bucket() string
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// ListBucket prints every object under prefix with its size.
func ListBucket(ctx context.Context, w io.Writer, l Lister, prefix string) error {
	objs, err := l.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("listing bucket %s: %w", l.Bucket(), err)
	}
	if len(objs) == 0 {
		fmt.Fprintln(w, "No images found in the bucket.")
		return nil
	}
	fmt.Fprintln(w, "Found uploaded images:")
	for _, o := range objs {
		fmt.Fprintf(w, "  %s (%d bytes)\n", o.Key, o.Size)
	}
	return nil
}

// Simulate runs one synthetic upload notification through h and prints the
// trigger result as indented JSON.
func Simulate(ctx context.Context, w io.Writer, h events.Handler, bucket, key string) (ingest.Result, error) {
	res := h.Handle(ctx, []ingest.Notification{{BucketName: bucket, ObjectKey: key}})
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return res, err
	}
	fmt.Fprintln(w, string(out))
	return res, nil
}

// Analyze prints labels, faces and moderation flags for each key. A failing
// key is reported and the next one proceeds; the number of failures is returned.
func Analyze(ctx context.Context, w io.Writer, v vision.Client, bucket string, keys []string) int {
	failed := 0
	for _, key := range keys {
		if err := analyzeOne(ctx, w, v, vision.ImageRef{Bucket: bucket, Key: key}); err != nil {
			fmt.Fprintf(w, " Error analyzing %s: %v\n", key, err)
			failed++
		}
		fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	}
	return failed
}

func analyzeOne(ctx context.Context, w io.Writer, v vision.Client, ref vision.ImageRef) error {
	fmt.Fprintf(w, "\nAnalyzing: %s\n%s\n", ref.Key, strings.Repeat("=", 50))

	labels, err := v.DetectLabels(ctx, ref, images.MaxLabels, images.MinLabelConfidence)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "OBJECTS DETECTED:")
	shown := 0
	for _, l := range labels {
		if l.Confidence < images.MinLabelConfidence || shown == images.MaxLabels {
			continue
		}
		fmt.Fprintf(w, "   • %s: %.1f%%\n", l.Name, l.Confidence)
		shown++
	}

	faces, err := v.DetectFaces(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nFACE ANALYSIS:")
	if len(faces) == 0 {
		fmt.Fprintln(w, "   No faces detected")
	}
	for i, f := range faces {
		fmt.Fprintf(w, "   Face %d:\n", i+1)
		fmt.Fprintf(w, "     Age: %d-%d years\n", f.AgeLow, f.AgeHigh)
		fmt.Fprintf(w, "     Gender: %s (%.1f%%)\n", f.Gender, f.GenderConfidence)
		if e, ok := f.TopEmotion(); ok {
			fmt.Fprintf(w, "     Emotion: %s (%.1f%%)\n", e.Type, e.Confidence)
		}
	}

	mod, err := v.DetectModerationLabels(ctx, ref, images.MinModerationConfidence)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nCONTENT MODERATION:")
	var flagged []vision.ModerationLabel
	for _, m := range mod {
		if m.Confidence >= images.MinModerationConfidence {
			flagged = append(flagged, m)
		}
	}
	if len(flagged) == 0 {
		fmt.Fprintln(w, "   Content is safe")
		return nil
	}
	fmt.Fprintln(w, "   Content flags:")
	for _, m := range flagged {
		fmt.Fprintf(w, "     • %s: %.1f%%\n", m.Name, m.Confidence)
	}
	return nil
}
