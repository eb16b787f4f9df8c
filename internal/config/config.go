package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/utils"
)

// Config holds process-level settings. Values load from an optional YAML
// file (CONFIG_PATH) and individual environment variables override the file.
type Config struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	Pipeline PipelineConfig `yaml:"pipeline"`
	Queue    QueueConfig    `yaml:"queue"`
}

type PipelineConfig struct {
	// DefaultMinQualityScore applies when a plan is created without one. Bounded 80-100.
	DefaultMinQualityScore int `yaml:"default_min_quality_score"`
	// DefaultMaxIterations applies when a plan is created without one. Bounded 1-5.
	DefaultMaxIterations int `yaml:"default_max_iterations"`
}

type QueueConfig struct {
	// Mode is "inline" or "redis".
	Mode      string `yaml:"mode"`
	RedisAddr string `yaml:"redis_addr"`
	Key       string `yaml:"key"`
	Workers   int    `yaml:"workers"`
}

func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		Port:        "8080",
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		Pipeline: PipelineConfig{
			DefaultMinQualityScore: 85,
			DefaultMaxIterations:   3,
		},
		Queue: QueueConfig{
			Mode:      "inline",
			RedisAddr: "localhost:6379",
			Key:       "draftforge:plan_jobs",
			Workers:   2,
		},
	}

	path := utils.GetEnv("CONFIG_PATH", "", log)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = utils.GetEnv("PORT", cfg.Port, log)
	cfg.Queue.Mode = utils.GetEnv("QUEUE_MODE", cfg.Queue.Mode, log)
	cfg.Queue.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.Queue.RedisAddr, log)
	cfg.Queue.Key = utils.GetEnv("QUEUE_KEY", cfg.Queue.Key, log)
	cfg.Queue.Workers = utils.GetEnvAsInt("QUEUE_WORKERS", cfg.Queue.Workers, log)
	cfg.Pipeline.DefaultMinQualityScore = utils.GetEnvAsInt("DEFAULT_MIN_QUALITY_SCORE", cfg.Pipeline.DefaultMinQualityScore, log)
	cfg.Pipeline.DefaultMaxIterations = utils.GetEnvAsInt("DEFAULT_MAX_ITERATIONS", cfg.Pipeline.DefaultMaxIterations, log)

	if cfg.Queue.Workers < 1 {
		cfg.Queue.Workers = 1
	}
	return cfg, nil
}
