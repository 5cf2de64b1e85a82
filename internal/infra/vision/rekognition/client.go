// Package rekognition implements the vision port on AWS Rekognition.
package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectModerationLabels(ctx context.Context, params *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// ObjectReader loads image bytes for buckets Rekognition cannot read itself.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

type Client struct {
	api     API
	objects ObjectReader
}

// New wraps api. With a nil objects reader images are passed by S3 reference,
// otherwise their bytes are sent inline.
func New(api API, objects ObjectReader) *Client {
	return &Client{api: api, objects: objects}
}

// NewFromConfig builds the client from an AWS config.
func NewFromConfig(cfg aws.Config, objects ObjectReader) *Client {
	return New(rekognition.NewFromConfig(cfg), objects)
}

func (c *Client) DetectLabels(ctx context.Context, ref vision.ImageRef, maxLabels int, minConfidence float64) ([]vision.Label, error) {
	img, err := c.image(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := c.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         img,
		MaxLabels:     aws.Int32(int32(maxLabels)),
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, mapError("detect labels", err)
	}

	labels := make([]vision.Label, 0, len(out.Labels))
	for i, l := range out.Labels {
		if l.Name == nil || l.Confidence == nil {
			return nil, fmt.Errorf("%w: label %d without name or confidence", vision.ErrInvalidResponse, i)
		}
		labels = append(labels, vision.Label{Name: *l.Name, Confidence: float64(*l.Confidence)})
	}
	return labels, nil
}

func (c *Client) DetectModerationLabels(ctx context.Context, ref vision.ImageRef, minConfidence float64) ([]vision.ModerationLabel, error) {
	img, err := c.image(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := c.api.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         img,
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, mapError("detect moderation labels", err)
	}

	labels := make([]vision.ModerationLabel, 0, len(out.ModerationLabels))
	for i, l := range out.ModerationLabels {
		if l.Name == nil || l.Confidence == nil {
			return nil, fmt.Errorf("%w: moderation label %d without name or confidence", vision.ErrInvalidResponse, i)
		}
		labels = append(labels, vision.ModerationLabel{
			Name:       *l.Name,
			ParentName: aws.ToString(l.ParentName),
			Confidence: float64(*l.Confidence),
		})
	}
	return labels, nil
}

func (c *Client) DetectFaces(ctx context.Context, ref vision.ImageRef) ([]vision.Face, error) {
	img, err := c.image(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := c.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      img,
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, mapError("detect faces", err)
	}

	faces := make([]vision.Face, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		var f vision.Face
		if fd.AgeRange != nil {
			f.AgeLow = int(aws.ToInt32(fd.AgeRange.Low))
			f.AgeHigh = int(aws.ToInt32(fd.AgeRange.High))
		}
		if fd.Gender != nil {
			f.Gender = string(fd.Gender.Value)
			f.GenderConfidence = float64(aws.ToFloat32(fd.Gender.Confidence))
		}
		for _, e := range fd.Emotions {
			f.Emotions = append(f.Emotions, vision.Emotion{Type: string(e.Type), Confidence: float64(aws.ToFloat32(e.Confidence))})
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func (c *Client) image(ctx context.Context, ref vision.ImageRef) (*types.Image, error) {
	if c.objects == nil {
		return &types.Image{S3Object: &types.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		}}, nil
	}
	data, err := c.objects.ReadObject(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("loading %s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return &types.Image{Bytes: data}, nil
}

func mapError(op string, err error) error {
	var (
		throttled   *types.ThrottlingException
		throughput  *types.ProvisionedThroughputExceededException
		limitExceed *types.LimitExceededException
	)
	if errors.As(err, &throttled) || errors.As(err, &throughput) || errors.As(err, &limitExceed) {
		return fmt.Errorf("%s: %w: %v", op, vision.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
