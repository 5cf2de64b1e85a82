// Package openai implements the vision port on a multimodal chat model.
// Images are handed to the model as short-lived presigned URLs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/infra/vision/prompt"
)

const (
	maxTokens     = 2048
	defaultModel  = "gpt-4o-mini"
	imageURLValid = 15 * time.Minute
)

// URLSigner issues the URL the model downloads the image from.
type URLSigner interface {
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

type Client struct {
	*openai.Client
	Model  string
	signer URLSigner
}

func NewClient(apiKey, model, baseURL string, signer URLSigner) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewClientWithConfig(cfg, model, signer)
}

func NewClientWithConfig(cfg openai.ClientConfig, model string, signer URLSigner) *Client {
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, signer: signer}
}

type labelsResponse struct {
	Labels []struct {
		Name       *string  `json:"name"`
		Confidence *float64 `json:"confidence"`
	} `json:"labels"`
}

type moderationResponse struct {
	ModerationLabels []struct {
		Name       *string  `json:"name"`
		ParentName string   `json:"parent_name"`
		Confidence *float64 `json:"confidence"`
	} `json:"moderation_labels"`
}

type facesResponse struct {
	Faces []struct {
		AgeLow           int     `json:"age_low"`
		AgeHigh          int     `json:"age_high"`
		Gender           string  `json:"gender"`
		GenderConfidence float64 `json:"gender_confidence"`
		Emotions         []struct {
			Type       string  `json:"type"`
			Confidence float64 `json:"confidence"`
		} `json:"emotions"`
	} `json:"faces"`
}

func (c *Client) DetectLabels(ctx context.Context, ref vision.ImageRef, maxLabels int, minConfidence float64) ([]vision.Label, error) {
	var resp labelsResponse
	if err := c.complete(ctx, prompt.LabelsSystemPrompt(), ref, minConfidence, &resp); err != nil {
		return nil, err
	}

	labels := make([]vision.Label, 0, len(resp.Labels))
	for i, l := range resp.Labels {
		if l.Name == nil || l.Confidence == nil {
			return nil, fmt.Errorf("%w: label %d without name or confidence", vision.ErrInvalidResponse, i)
		}
		if *l.Confidence < minConfidence {
			continue
		}
		labels = append(labels, vision.Label{Name: *l.Name, Confidence: *l.Confidence})
	}
	// the model is asked to sort but is not trusted to
	slices.SortStableFunc(labels, func(a, b vision.Label) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if maxLabels > 0 && len(labels) > maxLabels {
		labels = labels[:maxLabels]
	}
	return labels, nil
}

func (c *Client) DetectModerationLabels(ctx context.Context, ref vision.ImageRef, minConfidence float64) ([]vision.ModerationLabel, error) {
	var resp moderationResponse
	if err := c.complete(ctx, prompt.ModerationSystemPrompt(), ref, minConfidence, &resp); err != nil {
		return nil, err
	}

	labels := make([]vision.ModerationLabel, 0, len(resp.ModerationLabels))
	for i, l := range resp.ModerationLabels {
		if l.Name == nil || l.Confidence == nil {
			return nil, fmt.Errorf("%w: moderation label %d without name or confidence", vision.ErrInvalidResponse, i)
		}
		if *l.Confidence < minConfidence {
			continue
		}
		labels = append(labels, vision.ModerationLabel{Name: *l.Name, ParentName: l.ParentName, Confidence: *l.Confidence})
	}
	return labels, nil
}

func (c *Client) DetectFaces(ctx context.Context, ref vision.ImageRef) ([]vision.Face, error) {
	var resp facesResponse
	if err := c.complete(ctx, prompt.FacesSystemPrompt(), ref, 0, &resp); err != nil {
		return nil, err
	}

	faces := make([]vision.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		face := vision.Face{
			AgeLow:           f.AgeLow,
			AgeHigh:          f.AgeHigh,
			Gender:           f.Gender,
			GenderConfidence: f.GenderConfidence,
		}
		for _, e := range f.Emotions {
			face.Emotions = append(face.Emotions, vision.Emotion{Type: strings.ToUpper(e.Type), Confidence: e.Confidence})
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// complete sends the image with a system prompt and decodes the JSON answer into out.
func (c *Client) complete(ctx context.Context, system string, ref vision.ImageRef, minConfidence float64, out any) error {
	imageURL, err := c.signer.PresignGet(ctx, ref.Bucket, ref.Key, imageURLValid)
	if err != nil {
		return fmt.Errorf("presigning %s/%s: %w", ref.Bucket, ref.Key, err)
	}

	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt.UserPrompt(ref.Key, minConfidence)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			}},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuotaError(err) {
			return fmt.Errorf("%w: %v", vision.ErrQuotaExceeded, err)
		}
		return fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices returned", vision.ErrInvalidResponse)
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("%w: %v", vision.ErrInvalidResponse, err)
	}
	return nil
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
