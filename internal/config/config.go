package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	sentryDSN              string
	googleCloudProject     string
	port                   string
	env                    environment

	transitAPIURL string
	transitAPIKey string
	trackerURL    string

	freshTTL          time.Duration
	staleTTL          time.Duration
	maxSyncWait       time.Duration
	jobTimeout        time.Duration
	retryAfter        time.Duration
	failureCooldown   time.Duration
	maxConcurrentJobs int
	entrySweep        bool

	upstreamLimit  int
	upstreamWindow time.Duration
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) TransitAPIURL() string {
	return c.transitAPIURL
}

func (c *Config) TransitAPIKey() string {
	return c.transitAPIKey
}

func (c *Config) TrackerURL() string {
	return c.trackerURL
}

func (c *Config) FreshTTL() time.Duration {
	return c.freshTTL
}

func (c *Config) StaleTTL() time.Duration {
	return c.staleTTL
}

func (c *Config) MaxSyncWait() time.Duration {
	return c.maxSyncWait
}

func (c *Config) JobTimeout() time.Duration {
	return c.jobTimeout
}

func (c *Config) RetryAfter() time.Duration {
	return c.retryAfter
}

func (c *Config) FailureCooldown() time.Duration {
	return c.failureCooldown
}

func (c *Config) MaxConcurrentJobs() int {
	return c.maxConcurrentJobs
}

func (c *Config) EntrySweep() bool {
	return c.entrySweep
}

func (c *Config) UpstreamLimit() int {
	return c.upstreamLimit
}

func (c *Config) UpstreamWindow() time.Duration {
	return c.upstreamWindow
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, freshTTL: %s, staleTTL: %s, maxSyncWait: %s, jobTimeout: %s, maxConcurrentJobs: %d, ...}",
		string(c.env), c.port, c.freshTTL, c.staleTTL, c.maxSyncWait, c.jobTimeout, c.maxConcurrentJobs,
	)
}

func invalidValue(key, raw string) error {
	return fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
}

func durationFromEnv(key string, defaultValue time.Duration, allowZero bool) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", invalidValue(key, raw), err)
	}
	if value < 0 || (value == 0 && !allowZero) {
		return 0, invalidValue(key, raw)
	}

	return value, nil
}

func positiveIntFromEnv(key string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", invalidValue(key, raw), err)
	}
	if value < 1 {
		return 0, invalidValue(key, raw)
	}

	return value, nil
}

func boolFromEnv(key string, defaultValue bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %w", invalidValue(key, raw), err)
	}

	return value, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("BLOCKFINDER_ENVIRONMENT")
	if !ok {
		return missingKey("BLOCKFINDER_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: BLOCKFINDER_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")
	googleCloudProject := os.Getenv("GOOGLE_CLOUD_PROJECT")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8123"
	}
	if parsedPort, err := strconv.Atoi(port); err != nil || parsedPort < 1 || parsedPort > 65535 {
		return Config{}, invalidValue("PORT", port)
	}

	if env == production || env == staging {
		if cloudSQLUnixSocketPath == "" {
			return missingKey("CLOUDSQL_UNIX_SOCKET")
		}
		if dbUsername == "" {
			return missingKey("DB_USERNAME")
		}
		if dbPassword == "" {
			return missingKey("DB_PASSWORD")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	freshTTL, err := durationFromEnv("BLOCKFINDER_FRESH_TTL", 60*time.Second, false)
	if err != nil {
		return Config{}, err
	}
	staleTTL, err := durationFromEnv("BLOCKFINDER_STALE_TTL", 5*time.Minute, false)
	if err != nil {
		return Config{}, err
	}
	if staleTTL < freshTTL {
		return Config{}, fmt.Errorf("%w: BLOCKFINDER_STALE_TTL (%s) is shorter than BLOCKFINDER_FRESH_TTL (%s)", ErrInvalidValue, staleTTL, freshTTL)
	}

	maxSyncWait, err := durationFromEnv("BLOCKFINDER_MAX_SYNC_WAIT", 1500*time.Millisecond, false)
	if err != nil {
		return Config{}, err
	}
	jobTimeout, err := durationFromEnv("BLOCKFINDER_JOB_TIMEOUT", 45*time.Second, false)
	if err != nil {
		return Config{}, err
	}
	if jobTimeout <= maxSyncWait {
		return Config{}, fmt.Errorf("%w: BLOCKFINDER_JOB_TIMEOUT (%s) must be longer than BLOCKFINDER_MAX_SYNC_WAIT (%s)", ErrInvalidValue, jobTimeout, maxSyncWait)
	}

	retryAfter, err := durationFromEnv("BLOCKFINDER_RETRY_AFTER", 2*time.Second, false)
	if err != nil {
		return Config{}, err
	}
	failureCooldown, err := durationFromEnv("BLOCKFINDER_FAILURE_COOLDOWN", 10*time.Second, true)
	if err != nil {
		return Config{}, err
	}
	maxConcurrentJobs, err := positiveIntFromEnv("BLOCKFINDER_MAX_CONCURRENT_JOBS", 2)
	if err != nil {
		return Config{}, err
	}
	entrySweep, err := boolFromEnv("BLOCKFINDER_ENTRY_SWEEP", false)
	if err != nil {
		return Config{}, err
	}

	upstreamLimit, err := positiveIntFromEnv("BLOCKFINDER_UPSTREAM_LIMIT", 30)
	if err != nil {
		return Config{}, err
	}
	upstreamWindow, err := durationFromEnv("BLOCKFINDER_UPSTREAM_WINDOW", time.Minute, false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		sentryDSN:              sentryDSN,
		googleCloudProject:     googleCloudProject,
		port:                   port,
		env:                    env,

		transitAPIURL: os.Getenv("BLOCKFINDER_TRANSIT_API_URL"),
		transitAPIKey: os.Getenv("BLOCKFINDER_TRANSIT_API_KEY"),
		trackerURL:    os.Getenv("BLOCKFINDER_TRACKER_URL"),

		freshTTL:          freshTTL,
		staleTTL:          staleTTL,
		maxSyncWait:       maxSyncWait,
		jobTimeout:        jobTimeout,
		retryAfter:        retryAfter,
		failureCooldown:   failureCooldown,
		maxConcurrentJobs: maxConcurrentJobs,
		entrySweep:        entrySweep,

		upstreamLimit:  upstreamLimit,
		upstreamWindow: upstreamWindow,
	}, nil
}
