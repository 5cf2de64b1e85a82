package bootstrap

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-vision/internal/config"
	"github.com/bryanwahyu/automaton-vision/internal/infra/vision/openai"
	"github.com/bryanwahyu/automaton-vision/internal/infra/vision/rekognition"
)

func TestAWSConfig(t *testing.T) {
	var cfg config.Config
	cfg.AWS.Region = "eu-west-1"
	cfg.AWS.AccessKeyID = "AKIDEXAMPLE"
	cfg.AWS.SecretAccessKey = "secret"

	awsCfg, err := AWSConfig(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)
	assert.Equal(t, 1, awsCfg.RetryMaxAttempts)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestNewVision(t *testing.T) {
	var cfg config.Config
	cfg.Vision.Provider = config.ProviderRekognition
	assert.IsType(t, &rekognition.Client{}, NewVision(&cfg, aws.Config{Region: "us-east-1"}, nil))

	cfg.Vision.Provider = config.ProviderOpenAI
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Model = "gpt-4o-mini"
	assert.IsType(t, &openai.Client{}, NewVision(&cfg, aws.Config{}, nil))
}

func TestNewRegistry(t *testing.T) {
	mfs, err := NewRegistry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
}
