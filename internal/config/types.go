package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	NER        NERConfig        `yaml:"ner" mapstructure:"ner"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	VaultStore VaultStoreConfig `yaml:"vault_store" mapstructure:"vault_store"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// NERConfig contains entity-recognition model configuration
type NERConfig struct {
	ModelName    string        `yaml:"model_name" mapstructure:"model_name"`
	ModelPath    string        `yaml:"model_path" mapstructure:"model_path"`
	VocabPath    string        `yaml:"vocab_path" mapstructure:"vocab_path"`
	LabelsPath   string        `yaml:"labels_path" mapstructure:"labels_path"`
	MaxLength    int           `yaml:"max_length" mapstructure:"max_length"`
	ModelTimeout time.Duration `yaml:"model_timeout" mapstructure:"model_timeout"`
}

// LLMConfig contains the external generation service configuration.
// Only masked text is ever sent to this endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	Model          string        `yaml:"model" mapstructure:"model"`
	Temperature    float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
	RequestsPerMin int           `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

// PipelineConfig contains batch-processing configuration
type PipelineConfig struct {
	InputFile      string `yaml:"input_file" mapstructure:"input_file"`
	OutputFile     string `yaml:"output_file" mapstructure:"output_file"`
	CheckpointFile string `yaml:"checkpoint_file" mapstructure:"checkpoint_file"`
	DeadLetterFile string `yaml:"dead_letter_file" mapstructure:"dead_letter_file"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	PersistVaults  bool   `yaml:"persist_vaults" mapstructure:"persist_vaults"`
	StoreResults   bool   `yaml:"store_results" mapstructure:"store_results"`
}

// VaultStoreConfig contains Redis-backed vault persistence configuration
type VaultStoreConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// DatabaseConfig contains the analysis-result store configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Path           string        `yaml:"path" mapstructure:"path"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastProgress    bool `yaml:"broadcast_progress" mapstructure:"broadcast_progress"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		NER: NERConfig{
			ModelName:    "dslim/bert-base-NER",
			ModelPath:    "./models/ner.onnx",
			VocabPath:    "./models/vocab.txt",
			MaxLength:    512,
			ModelTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			APIKeyEnv:      "LLM_API_KEY",
			Model:          "llama-3.1-8b-instant",
			Temperature:    0,
			Timeout:        60 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 4 * time.Second,
			RetryMaxDelay:  10 * time.Second,
			RequestsPerMin: 5,
		},
		Pipeline: PipelineConfig{
			InputFile:      "data/sample_calls.json",
			OutputFile:     "outputs/final_analysis.json",
			CheckpointFile: "outputs/checkpoint.json",
			DeadLetterFile: "logs/dlq/failed_calls.log",
			Concurrency:    1,
		},
		VaultStore: VaultStoreConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			KeyPrefix:      "callveil",
			DefaultTTL:     24 * time.Hour,
			MaxConnections: 10,
			MinIdleConns:   2,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			DatabaseURL:     "postgres://localhost:5432/callveil?sslmode=disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			MaxConnections: 100,
			PingInterval:   54 * time.Second,
			PongTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			AllowedOrigins: []string{"*"},
		},
	}

	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 120
	cfg.Server.RateLimit.Burst = 20

	cfg.Logging.File.Path = "logs/callveil.log"
	cfg.Logging.File.MaxSize = 100 // MB
	cfg.Logging.File.MaxAge = 30   // days
	cfg.Logging.File.Compress = true

	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastProgress = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
