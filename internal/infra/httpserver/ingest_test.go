package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/application"
	"github.com/bryanwahyu/automaton-vision/internal/application/ingest"
	domain "github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/testutil"
)

func newIngest(t *testing.T) (*httptest.Server, *testutil.MemoryRepository, *testutil.Vision) {
	t.Helper()
	repo := testutil.NewMemoryRepository()
	vis := &testutil.Vision{
		Labels: map[string][]vision.Label{"photos/my car.jpg": {{Name: "Car", Confidence: 98.54}}},
	}
	svc := &ingest.Service{
		Repo:   repo,
		Vision: vis,
		Clock:  application.FixedClock{T: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		NewID:  func() domain.ImageID { return "img-1" },
	}
	srv := httptest.NewServer(NewIngestRouter(svc, Options{}))
	t.Cleanup(srv.Close)
	return srv, repo, vis
}

func post(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+"/v1/events/uploads", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestUploadWebhook(t *testing.T) {
	srv, repo, vis := newIngest(t)

	code, body := post(t, srv, `{"EventName":"s3:ObjectCreated:Put","Records":[
		{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"photos/my+car.jpg","size":1024}}}
	]}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"message": "Successfully processed 1 images", "analysis_id": "img-1"}, body)

	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, "photos/my car.jpg", stored[0].Filename)
	assert.Equal(t, []domain.DetectedObject{{Name: "Car", Confidence: 98.5}}, stored[0].ObjectsDetected)
	assert.Contains(t, vis.Calls, "labels:uploads/photos/my car.jpg")
}

func TestUploadWebhookErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"not json", `{`, http.StatusBadRequest, "invalid event document"},
		{"missing key", `{"Records":[{"s3":{"bucket":{"name":"uploads"},"object":{}}}]}`, http.StatusBadRequest, "record 0: missing bucket name or object key"},
		{"empty batch", `{"Records":[]}`, http.StatusInternalServerError, "no upload notifications in event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, repo, _ := newIngest(t)
			code, body := post(t, srv, tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Empty(t, repo.All())
		})
	}
}

func TestUploadWebhookOutlivesSender(t *testing.T) {
	srv, repo, vis := newIngest(t)
	vis.Delay = 300 * time.Millisecond

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := client.Post(srv.URL+"/v1/events/uploads", "application/json", strings.NewReader(
		`{"Records":[{"s3":{"bucket":{"name":"uploads"},"object":{"key":"car.jpg"}}}]}`))
	require.Error(t, err, "sender should give up before the batch finishes")

	require.Eventually(t, func() bool { return len(repo.All()) == 1 }, 3*time.Second, 20*time.Millisecond,
		"batch should finish after the sender went away")
	assert.Equal(t, "car.jpg", repo.All()[0].Filename)
}

func TestUploadThenGetByID(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	ingestSvc := &ingest.Service{
		Repo: repo,
		Vision: &testutil.Vision{
			Labels: map[string][]vision.Label{"car.jpg": {{Name: "Car", Confidence: 99.12}, {Name: "Vehicle", Confidence: 99.12}}},
		},
	}
	ingestSrv := httptest.NewServer(NewIngestRouter(ingestSvc, Options{}))
	t.Cleanup(ingestSrv.Close)
	querySrv := newServer(t, repo)

	code, body := post(t, ingestSrv, `{"Records":[{"s3":{"bucket":{"name":"uploads"},"object":{"key":"car.jpg"}}}]}`)
	require.Equal(t, http.StatusOK, code)
	id, ok := body["analysis_id"].(string)
	require.True(t, ok, "analysis_id expected in %v", body)
	require.NotEmpty(t, id)

	resp, got := do(t, querySrv, http.MethodGet, "/api/v1/images/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, got["analysis_complete"])

	img := got["image"].(map[string]any)
	assert.Equal(t, id, img["image_id"])
	assert.Equal(t, "car.jpg", img["filename"])
	assert.Equal(t, "https://uploads.example.test/car.jpg?X-Amz-Expires=3600", img["image_url"])
	assert.Equal(t, []any{
		map[string]any{"name": "Car", "confidence": 99.1},
		map[string]any{"name": "Vehicle", "confidence": 99.1},
	}, img["objects_detected"])
	assert.Equal(t, map[string]any{"is_safe": true, "flags": []any{}}, img["content_moderation"])
}
