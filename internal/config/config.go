// Package config loads quizzify settings from an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// MCP holds the settings of the MCP server.
type MCP struct {
	Port         int    `yaml:"port" env:"PORT" env-default:"8000" validate:"min=1,max=65535"`
	TableName    string `yaml:"table_name" env:"DYNAMODB_TABLE" env-default:"quizzify-jobs"`
	S3Bucket     string `yaml:"s3_bucket" env:"S3_BUCKET"`
	CDNBaseURL   string `yaml:"cdn_base_url" env:"CDN_BASE_URL"`
	AWSRegion    string `yaml:"aws_region" env:"AWS_REGION" env-default:"us-east-1"`
	MaxTasks     int    `yaml:"max_tasks" env:"MAX_TASKS" env-default:"5" validate:"min=1"`
	SecretPrefix string `yaml:"secret_prefix" env:"SECRET_PREFIX" env-default:"/quizzify/mcp/"`
}

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"development"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	VectorTable string `yaml:"vector_table" env:"VECTOR_TABLE" env-default:"quizzify_chunks"`
	Collection  string `yaml:"collection" env:"QUIZZIFY_COLLECTION" env-default:"default"`

	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-004"`
	Model          string `yaml:"model" env:"QUIZZIFY_MODEL" env-default:"haiku"`

	Topic                  string `yaml:"topic" env:"QUIZZIFY_TOPIC"`
	NumQuestions           int    `yaml:"num_questions" env:"QUIZZIFY_NUM_QUESTIONS" env-default:"5" validate:"min=1,max=10"`
	MaxConsecutiveFailures int    `yaml:"max_consecutive_failures" env:"QUIZZIFY_MAX_CONSECUTIVE_FAILURES" env-default:"0" validate:"min=0"`
	FailurePolicy          string `yaml:"failure_policy" env:"QUIZZIFY_FAILURE_POLICY" env-default:"fail-fast" validate:"oneof=fail-fast skip"`

	OutputDir string `yaml:"output_dir" env:"QUIZZIFY_OUTPUT_DIR" env-default:"quizzify-output"`
	TempDir   string `yaml:"temp_dir" env:"QUIZZIFY_TEMP_DIR"`

	MCP MCP `yaml:"mcp"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration. path may be empty, in which case QUIZZIFY_CONFIG
// names the YAML file, and with neither set only the environment is read. A
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = envOr("QUIZZIFY_CONFIG", "")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
