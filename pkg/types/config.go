package types

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Providers ProvidersConfig `yaml:"providers" json:"providers"`
	Parser    ParserConfig    `yaml:"parser" json:"parser"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Renderer  RendererConfig  `yaml:"renderer" json:"renderer"`
	Composer  ComposerConfig  `yaml:"composer" json:"composer"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
	BaseURL      string `yaml:"base_url" json:"base_url"`           // BACKEND_BASE_URL
}

// StorageConfig defines the finished-artifact byte-sink adapter settings,
// independent of the per-task workspace (C1), which is always local disk.
type StorageConfig struct {
	Adapter      string            `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local        LocalStorageOpts  `yaml:"local" json:"local"`
	S3           S3StorageOpts     `yaml:"s3" json:"s3"`
	Options      map[string]string `yaml:"options" json:"options"`
	MediaRoot    string            `yaml:"media_root" json:"media_root"`         // MEDIA_ROOT: base dir for per-task workspaces
	MediaURLBase string            `yaml:"media_url_prefix" json:"media_url_prefix"` // MEDIA_URL_PREFIX
}

// LocalStorageOpts configures the local filesystem byte-sink adapter.
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible byte-sink adapter.
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// ProvidersConfig holds all external generative-service configurations.
type ProvidersConfig struct {
	LLM   []LLMProviderConfig   `yaml:"llm" json:"llm"`
	Image []ImageProviderConfig `yaml:"image" json:"image"`
	TTS   []TTSProviderConfig   `yaml:"tts" json:"tts"`
}

// LLMProviderConfig configures the parser-extraction LLM provider.
type LLMProviderConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Endpoint    string            `yaml:"endpoint" json:"endpoint"`
	APIKey      string            `yaml:"api_key" json:"api_key"`
	Model       string            `yaml:"model" json:"model"`
	Concurrency int               `yaml:"concurrency" json:"concurrency"`
	Options     map[string]string `yaml:"options" json:"options"`
}

// ImageProviderConfig configures the image-generation provider.
type ImageProviderConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	APIKey   string            `yaml:"api_key" json:"api_key"`
	Model    string            `yaml:"model" json:"model"`
	Size     string            `yaml:"size" json:"size"`
	Options  map[string]string `yaml:"options" json:"options"`
}

// TTSProviderConfig configures the text-to-speech provider.
type TTSProviderConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	APIKey   string            `yaml:"api_key" json:"api_key"`
	Encoding string            `yaml:"encoding" json:"encoding"`
	Options  map[string]string `yaml:"options" json:"options"`
}

// ParserConfig holds Parser Stage (C5) settings.
type ParserConfig struct {
	MinTextLength int `yaml:"min_text_length" json:"min_text_length"`
	MaxTextLength int `yaml:"max_text_length" json:"max_text_length"`
	ChunkSize     int `yaml:"chunk_size" json:"chunk_size"`
	MaxCharacters int `yaml:"max_characters" json:"max_characters"`
	MaxScenes     int `yaml:"max_scenes" json:"max_scenes"`
}

// PipelineConfig holds orchestrator-level settings (C9).
type PipelineConfig struct {
	MaxRetries      int `yaml:"max_retries" json:"max_retries"`           // CORE_MAX_RETRIES
	TaskTimeoutSec  int `yaml:"task_timeout_sec" json:"task_timeout_sec"` // CORE_TASK_TIMEOUT
	MaxConcurrent   int `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	TaskTTLSec      int `yaml:"task_ttl_sec" json:"task_ttl_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec" json:"sweep_interval_sec"`
}

// RendererConfig holds Scene Renderer (C7) settings.
type RendererConfig struct {
	RetryAttempts       int     `yaml:"retry_attempts" json:"retry_attempts"`
	ProviderTimeoutSec  int     `yaml:"provider_timeout_sec" json:"provider_timeout_sec"`
	NarratorVoiceType   string  `yaml:"narrator_voice_type" json:"narrator_voice_type"`
	DefaultVoiceType    string  `yaml:"default_voice_type" json:"default_voice_type"`
	SilentAudioDuration float64 `yaml:"silent_audio_duration" json:"silent_audio_duration"`
	TTSSpeedRatio       float64 `yaml:"tts_speed_ratio" json:"tts_speed_ratio"`
	DialogueCharsPerSec float64 `yaml:"dialogue_chars_per_second" json:"dialogue_chars_per_second"`
	ActionDuration      float64 `yaml:"action_duration" json:"action_duration"`
	MinSceneDuration    float64 `yaml:"min_scene_duration" json:"min_scene_duration"`
	MaxSceneDuration    float64 `yaml:"max_scene_duration" json:"max_scene_duration"`
}

// ComposerConfig holds Composer (C8) media-toolchain settings.
type ComposerConfig struct {
	Codec           string `yaml:"codec" json:"codec"`
	Preset          string `yaml:"preset" json:"preset"`
	AudioCodec      string `yaml:"audio_codec" json:"audio_codec"`
	AudioBitrate    string `yaml:"audio_bitrate" json:"audio_bitrate"`
	TimeoutSec      int    `yaml:"timeout_sec" json:"timeout_sec"`
	UUIDSuffixLen   int    `yaml:"uuid_suffix_length" json:"uuid_suffix_length"`
}
