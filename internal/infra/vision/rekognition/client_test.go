package rekognition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	rek "github.com/bryanwahyu/automaton-vision/internal/infra/vision/rekognition"
)

type fakeAPI struct {
	labels     *rekognition.DetectLabelsOutput
	moderation *rekognition.DetectModerationLabelsOutput
	faces      *rekognition.DetectFacesOutput
	err        error

	labelsIn     *rekognition.DetectLabelsInput
	moderationIn *rekognition.DetectModerationLabelsInput
	facesIn      *rekognition.DetectFacesInput
}

func (f *fakeAPI) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.labelsIn = in
	return f.labels, f.err
}

func (f *fakeAPI) DetectModerationLabels(_ context.Context, in *rekognition.DetectModerationLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error) {
	f.moderationIn = in
	return f.moderation, f.err
}

func (f *fakeAPI) DetectFaces(_ context.Context, in *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	f.facesIn = in
	return f.faces, f.err
}

type fakeReader struct {
	data []byte
	err  error
}

func (r fakeReader) ReadObject(context.Context, string, string) ([]byte, error) { return r.data, r.err }

var ref = vision.ImageRef{Bucket: "example-bucket", Key: "car.jpg"}

func TestDetectLabels(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{labels: &rekognition.DetectLabelsOutput{Labels: []types.Label{
		{Name: aws.String("Car"), Confidence: aws.Float32(95.0)},
		{Name: aws.String("Tire"), Confidence: aws.Float32(72.0)},
	}}}
	c := rek.New(api, nil)

	got, err := c.DetectLabels(context.Background(), ref, 10, 70)
	require.NoError(t, err)

	assert.Equal(t, []vision.Label{{Name: "Car", Confidence: 95.0}, {Name: "Tire", Confidence: 72.0}}, got)
	assert.Equal(t, int32(10), aws.ToInt32(api.labelsIn.MaxLabels))
	assert.InDelta(t, 70.0, aws.ToFloat32(api.labelsIn.MinConfidence), 0.001)
	require.NotNil(t, api.labelsIn.Image.S3Object, "bucket reference expected")
	assert.Equal(t, "example-bucket", aws.ToString(api.labelsIn.Image.S3Object.Bucket))
	assert.Equal(t, "car.jpg", aws.ToString(api.labelsIn.Image.S3Object.Name))
	assert.Nil(t, api.labelsIn.Image.Bytes)
}

func TestDetectLabelsInlineBytes(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{labels: &rekognition.DetectLabelsOutput{}}
	c := rek.New(api, fakeReader{data: []byte("jpeg")})

	got, err := c.DetectLabels(context.Background(), ref, 10, 70)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, []byte("jpeg"), api.labelsIn.Image.Bytes)
	assert.Nil(t, api.labelsIn.Image.S3Object)
}

func TestDetectModerationLabels(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{moderation: &rekognition.DetectModerationLabelsOutput{ModerationLabels: []types.ModerationLabel{
		{Name: aws.String("Violence"), Confidence: aws.Float32(81.5)},
		{Name: aws.String("Weapons"), ParentName: aws.String("Violence"), Confidence: aws.Float32(64.0)},
	}}}
	c := rek.New(api, nil)

	got, err := c.DetectModerationLabels(context.Background(), ref, 60)
	require.NoError(t, err)

	assert.Equal(t, []vision.ModerationLabel{
		{Name: "Violence", Confidence: 81.5},
		{Name: "Weapons", ParentName: "Violence", Confidence: 64.0},
	}, got)
	assert.InDelta(t, 60.0, aws.ToFloat32(api.moderationIn.MinConfidence), 0.001)
}

func TestDetectFaces(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{faces: &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{{
		AgeRange: &types.AgeRange{Low: aws.Int32(25), High: aws.Int32(35)},
		Gender:   &types.Gender{Value: types.GenderTypeFemale, Confidence: aws.Float32(99.5)},
		Emotions: []types.Emotion{
			{Type: types.EmotionNameCalm, Confidence: aws.Float32(12)},
			{Type: types.EmotionNameHappy, Confidence: aws.Float32(85)},
		},
	}, {}}}}
	c := rek.New(api, nil)

	got, err := c.DetectFaces(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 25, got[0].AgeLow)
	assert.Equal(t, 35, got[0].AgeHigh)
	assert.Equal(t, "Female", got[0].Gender)
	top, ok := got[0].TopEmotion()
	require.True(t, ok)
	assert.Equal(t, "HAPPY", top.Type)

	_, ok = got[1].TopEmotion()
	assert.False(t, ok, "face without attributes has no emotion")
	assert.Equal(t, []types.Attribute{types.AttributeAll}, api.facesIn.Attributes)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		api    *fakeAPI
		reader rek.ObjectReader

		wantIs error
	}{
		"Throttling maps to quota exceeded": {
			api:    &fakeAPI{err: &types.ThrottlingException{Message: aws.String("slow down")}},
			wantIs: vision.ErrQuotaExceeded,
		},
		"Throughput maps to quota exceeded": {
			api:    &fakeAPI{err: &types.ProvisionedThroughputExceededException{}},
			wantIs: vision.ErrQuotaExceeded,
		},
		"Label without name is invalid": {
			api:    &fakeAPI{labels: &rekognition.DetectLabelsOutput{Labels: []types.Label{{Confidence: aws.Float32(90)}}}},
			wantIs: vision.ErrInvalidResponse,
		},
		"Other errors pass through": {
			api: &fakeAPI{err: &types.InvalidS3ObjectException{Message: aws.String("no such key")}},
		},
		"Reader failure": {
			api:    &fakeAPI{},
			reader: fakeReader{err: errors.New("object too large")},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := rek.New(tc.api, tc.reader)
			_, err := c.DetectLabels(context.Background(), ref, 10, 70)
			require.Error(t, err)
			if tc.wantIs != nil {
				require.ErrorIs(t, err, tc.wantIs)
			}
		})
	}
}
