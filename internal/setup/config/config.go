package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// EnvPrefix is the prefix of environment variables that override config values.
// Nested keys are separated by a double underscore, for example
// GUARDIAN_COMMON__TEXT_BACKEND__API_KEY.
const EnvPrefix = "GUARDIAN_"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentServerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Server ServerConfig `koanf:"server"`
}

// CommonConfig contains configuration shared between all services.
type CommonConfig struct {
	// Version of the common config.
	Version        int            `koanf:"version"`
	Debug          Debug          `koanf:"debug"`
	CircuitBreaker CircuitBreaker `koanf:"circuit_breaker"`
	Retry          Retry          `koanf:"retry"`
	PostgreSQL     PostgreSQL     `koanf:"postgresql"`
	Redis          Redis          `koanf:"redis"`
	Telemetry      Telemetry      `koanf:"telemetry"`
	Moderation     Moderation     `koanf:"moderation"`
	TextBackend    TextBackend    `koanf:"text_backend"`
	ImageBackend   ImageBackend   `koanf:"image_backend"`
	Notify         Notify         `koanf:"notify"`
}

// ServerConfig contains REST server specific configuration.
type ServerConfig struct {
	// Version of the server config.
	Version int `koanf:"version"`
	// Host to listen on.
	Host string `koanf:"host"`
	// Port to listen on.
	Port int `koanf:"port"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Maximum accepted image upload size in bytes.
	MaxImageSize int64 `koanf:"max_image_size"`
	// Maximum accepted video upload size in bytes.
	MaxVideoSize int64 `koanf:"max_video_size"`
	// Maximum number of audit log entries returned per page.
	MaxLogsPageSize int `koanf:"max_logs_page_size"`
	// Rate limiting configuration.
	RateLimit RateLimit `koanf:"rate_limit"`
	// Client IP detection configuration.
	IP IPConfig `koanf:"ip"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// How often buffered log output is flushed, in milliseconds. 0 writes through.
	LogFlushInterval int `koanf:"log_flush_interval"`
}

// CircuitBreaker contains circuit breaker configuration for analysis backends.
type CircuitBreaker struct {
	// Maximum number of requests allowed to pass through when the circuit is half-open.
	MaxRequests uint32 `koanf:"max_requests"`
	// The cyclic period of the closed state for the circuit breaker to clear the internal counts.
	Interval int `koanf:"interval"`
	// The period of the open state after which the state of the circuit breaker becomes half-open.
	Timeout int `koanf:"timeout"`
	// Minimum requests in an interval before the failure ratio is evaluated.
	MinRequests uint32 `koanf:"min_requests"`
	// Failure ratio at which the circuit opens.
	FailureRatio float64 `koanf:"failure_ratio"`
}

// Retry contains database retry configuration.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Whether the text verdict cache is enabled.
	CacheEnabled bool `koanf:"cache_enabled"`
	// Text verdict cache TTL in seconds.
	CacheTTL int `koanf:"cache_ttl"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Uptrace DSN. Tracing export is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Deployment environment reported with traces.
	Environment string `koanf:"environment"`
}

// Moderation contains moderation policy configuration.
type Moderation struct {
	// Share of determinate frames that must be flagged, exclusively, to flag a video.
	VideoFlagThreshold float64 `koanf:"video_flag_threshold"`
	// Number of flag events at which a user is banned.
	BanThreshold int `koanf:"ban_threshold"`
	// Video sampling rate in frames per second.
	FrameRate float64 `koanf:"frame_rate"`
	// Maximum frames sampled per video (0 for no limit).
	MaxFrames int `koanf:"max_frames"`
	// Maximum concurrent frame analysis calls per video.
	MaxConcurrentFrames int `koanf:"max_concurrent_frames"`
	// Directory for invocation-scoped temporary files (empty for system default).
	TempDir string `koanf:"temp_dir"`
	// Path to the ffmpeg binary.
	FFmpegPath string `koanf:"ffmpeg_path"`
}

// TextBackend contains the Gemini text analysis backend configuration.
type TextBackend struct {
	// API key for authentication.
	APIKey string `koanf:"api_key"`
	// Model name.
	Model string `koanf:"model"`
	// Sampling temperature.
	Temperature float32 `koanf:"temperature"`
	// Maximum concurrent requests.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	// Request timeout in milliseconds.
	Timeout int `koanf:"timeout"`
}

// ImageBackend contains the image classification backend configuration.
type ImageBackend struct {
	// Classifier endpoint URL.
	URL string `koanf:"url"`
	// Bearer token for authentication.
	Token string `koanf:"token"`
	// Maximum concurrent requests.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	// Request timeout in milliseconds.
	Timeout int `koanf:"timeout"`
	// Minimum score of an NSFW label for label/score responses to flag an image.
	NSFWScoreThreshold float64 `koanf:"nsfw_score_threshold"`
}

// Notify contains ban notification configuration.
type Notify struct {
	// Discord webhook URL. Notifications are disabled when empty.
	WebhookURL string `koanf:"webhook_url"`
}

// RateLimit contains per-client rate limiting configuration.
type RateLimit struct {
	// Requests allowed per second.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	// Maximum burst size.
	BurstSize int `koanf:"burst_size"`
	// Violations before a client is blocked.
	StrikeLimit int `koanf:"strike_limit"`
	// Block duration in seconds.
	BlockDuration int `koanf:"block_duration"`
}

// IPConfig contains client IP detection configuration.
type IPConfig struct {
	// Whether forwarded headers are trusted from trusted proxies.
	EnableHeaderCheck bool `koanf:"enable_header_check"`
	// CIDR ranges of trusted reverse proxies.
	TrustedProxies []string `koanf:"trusted_proxies"`
	// Headers checked for the client IP, in order.
	CustomHeaders []string `koanf:"custom_headers"`
}

// defaults holds values used when neither a config file nor the environment sets them.
var defaults = map[string]any{
	"common.debug.log_level":                    "info",
	"common.debug.max_logs_to_keep":             10,
	"common.debug.max_log_lines":                100000,
	"common.debug.log_flush_interval":           0,
	"common.circuit_breaker.max_requests":       1,
	"common.circuit_breaker.interval":           60000,
	"common.circuit_breaker.timeout":            30000,
	"common.circuit_breaker.min_requests":       10,
	"common.circuit_breaker.failure_ratio":      0.6,
	"common.retry.max_retries":                  5,
	"common.retry.delay":                        100,
	"common.retry.max_delay":                    5000,
	"common.postgresql.host":                    "localhost",
	"common.postgresql.port":                    5432,
	"common.postgresql.max_open_conns":          20,
	"common.postgresql.max_idle_conns":          5,
	"common.postgresql.max_lifetime":            30,
	"common.postgresql.max_idle_time":           5,
	"common.redis.host":                         "localhost",
	"common.redis.port":                         6379,
	"common.redis.cache_ttl":                    86400,
	"common.moderation.video_flag_threshold":    0.2,
	"common.moderation.ban_threshold":           2,
	"common.moderation.frame_rate":              1.0,
	"common.moderation.max_concurrent_frames":   4,
	"common.moderation.ffmpeg_path":             "ffmpeg",
	"common.text_backend.model":                 "gemini-1.5-flash",
	"common.text_backend.temperature":           0.2,
	"common.text_backend.max_concurrent":        8,
	"common.text_backend.timeout":               30000,
	"common.image_backend.url":                  "https://api-inference.huggingface.co/models/Falconsai/nsfw_image_detection",
	"common.image_backend.max_concurrent":       8,
	"common.image_backend.timeout":              30000,
	"common.image_backend.nsfw_score_threshold": 0.5,
	"server.host":                               "0.0.0.0",
	"server.port":                               5000,
	"server.request_timeout":                    120000,
	"server.max_image_size":                     10 << 20,
	"server.max_video_size":                     50 << 20,
	"server.max_logs_page_size":                 100,
	"server.rate_limit.requests_per_second":     5,
	"server.rate_limit.burst_size":              10,
	"server.rate_limit.strike_limit":            10,
	"server.rate_limit.block_duration":          60,
	"server.ip.custom_headers":                  []string{"X-Forwarded-For", "X-Real-IP"},
}

// LoadConfig loads the configuration from the config search paths, applies
// defaults and environment overrides and validates the file versions.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Load defaults first so files and environment override them
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load config defaults: %w", err)
	}

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".guardian",
		homeDir + "/.guardian/config",
		"/etc/guardian/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files, each under its own key
	var usedConfigPath string

	configFiles := []string{"common", "server"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)

			fk := koanf.New(".")
			if err := fk.Load(file.Provider(configPath), toml.Parser()); err != nil {
				continue
			}

			if err := k.MergeAt(fk, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
			}
			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	config, err := load(k)
	if err != nil {
		return nil, "", err
	}

	return config, usedConfigPath, nil
}

// load applies environment overrides, unmarshals and validates versions.
func load(k *koanf.Koanf) (*Config, error) {
	// Environment variables override file values
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, err
	}

	if err := checkConfigVersion("server", config.Server.Version, CurrentServerVersion); err != nil {
		return nil, err
	}

	return &config, nil
}

// envKey maps GUARDIAN_COMMON__TEXT_BACKEND__API_KEY to common.text_backend.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/guardian/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
