package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Store   StoreConfig
	Advisor AdvisorConfig
	Jobs    JobsConfig
	Chat    ChatConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// StoreConfig describes connectivity to the document store.
type StoreConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// AdvisorConfig configures the generative advisor backend.
type AdvisorConfig struct {
	APIKey               string
	BaseURL              string
	Model                string
	CallTimeout          time.Duration
	CandidateConcurrency int
}

// JobsConfig controls the background refresh job.
type JobsConfig struct {
	RefreshEnabled  bool
	RefreshInterval time.Duration
	InterUserDelay  time.Duration
}

// ChatConfig controls the chat worker queue.
type ChatConfig struct {
	QueueSize int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost                 = "0.0.0.0"
	defaultPort                 = 8080
	defaultReadTimeout          = 10 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 60 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultLoggingLevel         = "info"
	defaultLoggingFormat        = "text"
	defaultStoreDatabase        = "finpersona"
	defaultStoreConnectTimeout  = 10 * time.Second
	defaultAdvisorTimeout       = 30 * time.Second
	defaultAdvisorConcurrency   = 3
	defaultRefreshInterval      = 6 * time.Hour
	defaultRefreshInterUserWait = 2 * time.Second
	defaultChatQueueSize        = 32
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Store: StoreConfig{
			URI:            os.Getenv("STORE_URI"),
			Database:       valueOrDefault("STORE_DATABASE", defaultStoreDatabase),
			ConnectTimeout: defaultStoreConnectTimeout,
		},
		Advisor: AdvisorConfig{
			APIKey:               os.Getenv("ADVISOR_API_KEY"),
			BaseURL:              os.Getenv("ADVISOR_BASE_URL"),
			Model:                os.Getenv("ADVISOR_MODEL"),
			CallTimeout:          defaultAdvisorTimeout,
			CandidateConcurrency: parseIntWithDefault("ADVISOR_CONCURRENCY", defaultAdvisorConcurrency),
		},
		Jobs: JobsConfig{
			RefreshEnabled:  parseBoolWithDefault("JOBS_REFRESH_ENABLED", false),
			RefreshInterval: defaultRefreshInterval,
			InterUserDelay:  defaultRefreshInterUserWait,
		},
		Chat: ChatConfig{
			QueueSize: parseIntWithDefault("CHAT_QUEUE_SIZE", defaultChatQueueSize),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	if err := overrideDuration("SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("STORE_CONNECT_TIMEOUT", &cfg.Store.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("ADVISOR_CALL_TIMEOUT", &cfg.Advisor.CallTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("JOBS_REFRESH_INTERVAL", &cfg.Jobs.RefreshInterval); err != nil {
		return Config{}, err
	}
	if err := overrideDuration("JOBS_INTER_USER_DELAY", &cfg.Jobs.InterUserDelay); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
