package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverDynamoDB = "dynamodb"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Vision providers
const (
	ProviderRekognition = "rekognition"
	ProviderOpenAI      = "openai"
)

type Config struct {
	Server struct {
		Port       int `yaml:"port"`
		IngestPort int `yaml:"ingestPort"`
		RateLimit  struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	Store struct {
		Driver string `yaml:"driver"`
		Table  string `yaml:"table"`
	} `yaml:"store"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	AWS struct {
		Region           string `yaml:"region"`
		AccessKeyID      string `yaml:"accessKeyId"`
		SecretAccessKey  string `yaml:"secretAccessKey"`
		DynamoDBEndpoint string `yaml:"dynamodbEndpoint"`
	} `yaml:"aws"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Vision struct {
		Provider string `yaml:"provider"`
		// InlineBytes sends the image content instead of a bucket reference,
		// for buckets the provider cannot read directly.
		InlineBytes bool `yaml:"inlineBytes"`
	} `yaml:"vision"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	Ingest struct {
		Listen bool   `yaml:"listen"`
		Prefix string `yaml:"prefix"`
		Suffix string `yaml:"suffix"`
	} `yaml:"ingest"`

	Query struct {
		URLExpiry time.Duration `yaml:"urlExpiry"`
	} `yaml:"query"`
}

// Load baca file config.yaml, lalu .env dan environment variables.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional, variables already set in the environment win
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.Table, "STORE_TABLE")
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.AWS.Region, "AWS_REGION")
	setString(&c.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.BucketName, "MINIO_BUCKET")
	setString(&c.Vision.Provider, "VISION_PROVIDER")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v, ok := os.LookupEnv("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.IngestPort == 0 {
		c.Server.IngestPort = 8081
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverDynamoDB
	}
	if c.Store.Table == "" {
		c.Store.Table = "image-analysis-results"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Minio.Endpoint == "" {
		c.Minio.Endpoint = "s3.amazonaws.com"
		c.Minio.UseSSL = true
	}
	if c.Minio.Region == "" {
		c.Minio.Region = c.AWS.Region
	}
	if c.Vision.Provider == "" {
		c.Vision.Provider = ProviderRekognition
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Query.URLExpiry == 0 {
		c.Query.URLExpiry = time.Hour
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
}

// Validate rejects configurations no binary can start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverDynamoDB, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Vision.Provider {
	case ProviderRekognition:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.apiKey is required for the openai vision provider")
		}
	default:
		return fmt.Errorf("unknown vision provider %q", c.Vision.Provider)
	}
	if c.Minio.BucketName == "" {
		return errors.New("minio.bucketName is required")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
