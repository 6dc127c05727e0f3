package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file.
// It also supports environment variable overrides with the NVP_ prefix,
// plus the handful of bare env vars the spec names directly
// (MEDIA_ROOT, MEDIA_URL_PREFIX, BACKEND_BASE_URL, CORE_MAX_RETRIES,
// CORE_TASK_TIMEOUT).
func Load(configPath string) (*types.Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func Validate(cfg *types.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	if cfg.Pipeline.MaxConcurrent <= 0 {
		cfg.Pipeline.MaxConcurrent = 4
	}
	if cfg.Pipeline.MaxRetries < 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Parser.MinTextLength <= 0 {
		cfg.Parser.MinTextLength = 100
	}
	if cfg.Parser.MaxTextLength <= 0 {
		cfg.Parser.MaxTextLength = 100000
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Most settings
// use the NVP_ prefix; the handful the spec names directly (MEDIA_ROOT,
// MEDIA_URL_PREFIX, BACKEND_BASE_URL, CORE_MAX_RETRIES, CORE_TASK_TIMEOUT)
// are read only under their bare names and have no NVP_ variant.
func applyEnvOverrides(cfg *types.Config) {
	if val := os.Getenv("NVP_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("NVP_SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("BACKEND_BASE_URL"); val != "" {
		cfg.Server.BaseURL = val
	}

	if val := os.Getenv("NVP_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("NVP_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("NVP_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("NVP_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("NVP_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("NVP_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("NVP_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}
	if val := os.Getenv("MEDIA_ROOT"); val != "" {
		cfg.Storage.MediaRoot = val
	}
	if val := os.Getenv("MEDIA_URL_PREFIX"); val != "" {
		cfg.Storage.MediaURLBase = val
	}

	if val := os.Getenv("CORE_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.MaxRetries = n
		}
	}
	if val := os.Getenv("CORE_TASK_TIMEOUT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.TaskTimeoutSec = n
		}
	}

	applyProviderEnvOverrides(cfg)
}

// applyProviderEnvOverrides applies provider-specific env vars, one
// NVP_<KIND>_<NAME>_<FIELD> per configured provider entry.
func applyProviderEnvOverrides(cfg *types.Config) {
	for i := range cfg.Providers.LLM {
		prefix := fmt.Sprintf("NVP_LLM_%s_", strings.ToUpper(cfg.Providers.LLM[i].Name))
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.Providers.LLM[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.Providers.LLM[i].Endpoint = val
		}
	}

	for i := range cfg.Providers.Image {
		prefix := fmt.Sprintf("NVP_IMAGE_%s_", strings.ToUpper(cfg.Providers.Image[i].Name))
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.Providers.Image[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.Providers.Image[i].Endpoint = val
		}
	}

	for i := range cfg.Providers.TTS {
		prefix := fmt.Sprintf("NVP_TTS_%s_", strings.ToUpper(cfg.Providers.TTS[i].Name))
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.Providers.TTS[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.Providers.TTS[i].Endpoint = val
		}
	}
}

// GetDefault returns a default configuration.
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/narrated-video-pipeline/storage",
			},
			MediaRoot: "/var/lib/narrated-video-pipeline/media",
		},
		Parser: types.ParserConfig{
			MinTextLength: 100,
			MaxTextLength: 100000,
			ChunkSize:     4000,
			MaxCharacters: 20,
			MaxScenes:     200,
		},
		Pipeline: types.PipelineConfig{
			MaxRetries:       3,
			TaskTimeoutSec:   900,
			MaxConcurrent:    4,
			TaskTTLSec:       3600,
			SweepIntervalSec: 60,
		},
		Renderer: types.RendererConfig{
			RetryAttempts:       2,
			ProviderTimeoutSec:  60,
			NarratorVoiceType:   "narrator",
			DefaultVoiceType:    "neutral",
			SilentAudioDuration: 2.0,
			TTSSpeedRatio:       1.0,
			DialogueCharsPerSec: 15.0,
			ActionDuration:      3.0,
			MinSceneDuration:    2.0,
			MaxSceneDuration:    20.0,
		},
		Composer: types.ComposerConfig{
			Codec:         "libx264",
			Preset:        "medium",
			AudioCodec:    "aac",
			AudioBitrate:  "192k",
			TimeoutSec:    120,
			UUIDSuffixLen: 8,
		},
	}
}
