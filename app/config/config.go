package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	QueryModeFilter = "filter"
	QueryModeScript = "script"
)

type Config struct {
	Log        Log        `yaml:"log"`
	OpenAI     OpenAI     `yaml:"openai"`
	Dataset    Dataset    `yaml:"dataset"`
	Images     Images     `yaml:"images"`
	Query      Query      `yaml:"query"`
	Classifier Classifier `yaml:"classifier"`
	HTTP       HTTP       `yaml:"http"`
	MCP        MCP        `yaml:"mcp"`
}

type OpenAI struct {
	// Model used to classify user intent
	Classify ModelConfig `yaml:"classify" validate:"required"`
	// Model used to synthesize data queries
	Query ModelConfig `yaml:"query" validate:"required"`
	// Model used for informational and conversational replies
	Reply ModelConfig `yaml:"reply" validate:"required"`
	// Timeout of a single completion request
	Timeout time.Duration `yaml:"timeout" example:"30s"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token, falls back to OPENAI_API_KEY
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
}

type Dataset struct {
	// Path to the combined behavior CSV
	Path string `yaml:"path" example:"combined_intersection_df.csv" validate:"required"`
}

type Images struct {
	// Directory with <cow-id>.jpg files
	Dir string `yaml:"dir" example:"./cow_images_optimized" validate:"required"`
}

type Query struct {
	// filter: model fills a structured filter; script: model writes a starlark snippet
	Mode string `yaml:"mode" example:"filter" validate:"required,oneof=filter script"`
	// Execution step budget for script mode
	MaxSteps uint64 `yaml:"max_steps" example:"5000000" validate:"required"`
}

type Classifier struct {
	// Intent used when classification fails
	Fallback string `yaml:"fallback" example:"conversation" validate:"required,oneof=data_query info_query conversation"`
}

type HTTP struct {
	// Listen address of the chat API
	Addr string `yaml:"addr" example:":8080" validate:"required"`
}

type MCP struct {
	// Serve the ask_moobot tool over stdio
	Enabled bool `yaml:"enabled" example:"false"`
}

type Log struct {
	// Minimum console level: debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"required,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	path := os.Getenv("MOOBOT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.With("path", path).Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	envToken := os.Getenv("OPENAI_API_KEY")
	for _, model := range []*ModelConfig{&cfg.OpenAI.Classify, &cfg.OpenAI.Query, &cfg.OpenAI.Reply} {
		if model.BaseURL == "" {
			model.BaseURL = "https://api.openai.com/v1"
		}
		if model.Token == "" {
			model.Token = envToken
		}
		if model.Model == "" {
			model.Model = "gpt-4o-mini"
		}
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = 30 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "combined_intersection_df.csv"
	}
	if cfg.Images.Dir == "" {
		cfg.Images.Dir = "./cow_images_optimized"
	}
	if cfg.Query.Mode == "" {
		cfg.Query.Mode = QueryModeFilter
	}
	if cfg.Query.MaxSteps == 0 {
		cfg.Query.MaxSteps = 5_000_000
	}
	if cfg.Classifier.Fallback == "" {
		cfg.Classifier.Fallback = "conversation"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}
