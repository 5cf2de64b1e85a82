// Package bootstrap builds the long-lived clients every binary shares from config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/config"
	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/domain/vision"
	"github.com/bryanwahyu/automaton-vision/internal/infra/db/dynamodb"
	mysqlp "github.com/bryanwahyu/automaton-vision/internal/infra/db/mysql"
	"github.com/bryanwahyu/automaton-vision/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-vision/internal/infra/storage"
	"github.com/bryanwahyu/automaton-vision/internal/infra/vision/openai"
	"github.com/bryanwahyu/automaton-vision/internal/infra/vision/rekognition"
	"github.com/bryanwahyu/automaton-vision/internal/middleware"
)

// Repository is a result store that can report its health.
type Repository interface {
	images.Repository
	middleware.HealthChecker
}

// App holds the clients built from one config.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Objects  *storage.Store
	Repo     Repository
	// Vision is nil unless WithVision was requested.
	Vision vision.Client

	db *sql.DB
}

// New connects the object store and the result store; withVision also builds
// the configured vision provider.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, withVision bool) (*App, error) {
	app := &App{Config: cfg, Log: log, Registry: NewRegistry()}

	objects, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	app.Objects = objects

	awsCfg, err := AWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := app.openRepository(ctx, awsCfg); err != nil {
		return nil, err
	}
	if withVision {
		app.Vision = NewVision(cfg, awsCfg, objects)
	}
	return app, nil
}

// Health lists the checkers served on /health.
func (a *App) Health() map[string]middleware.HealthChecker {
	return map[string]middleware.HealthChecker{
		"store":  a.Repo,
		"bucket": a.Objects,
	}
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) openRepository(ctx context.Context, awsCfg aws.Config) error {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.DriverDynamoDB:
		a.Repo = dynamodb.NewFromConfig(awsCfg, cfg.Store.Table, cfg.AWS.DynamoDBEndpoint)
	case config.DriverMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return err
		}
		a.db = db
		a.Repo = mysqlp.NewImageRepository(db)
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return err
		}
		a.db = db
		a.Repo = postgres.NewImageRepository(db)
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

// AWSConfig loads the shared AWS configuration. The SDK retryer is limited to
// a single attempt; callers see the first failure.
func AWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("aws config: %w", err)
	}
	return awsCfg, nil
}

// NewVision builds the configured provider. objects signs URLs for the OpenAI
// provider and supplies inline bytes to Rekognition when vision.inlineBytes is set.
func NewVision(cfg *config.Config, awsCfg aws.Config, objects *storage.Store) vision.Client {
	switch cfg.Vision.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, objects)
	default:
		if cfg.Vision.InlineBytes && objects != nil {
			return rekognition.NewFromConfig(awsCfg, objects)
		}
		return rekognition.NewFromConfig(awsCfg, nil)
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
