// Package config loads orchestrator configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MonitorTask describes one periodic content-surface check.
type MonitorTask struct {
	ID       string
	Name     string
	URL      string
	Interval time.Duration
	// Cron is an optional cron expression; when set it takes precedence
	// over Interval for cooldown computation (see internal/monitorstate).
	Cron string
}

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string // "pretty" or "json"

	StoreAddr     string
	StorePassword string
	StoreDB       int

	Platforms []string

	CheckInterval          time.Duration
	InterPlatformDelay     time.Duration
	SamePlatformCooldown   time.Duration
	OnSaleRatio            int
	DefaultLimit           int
	DefaultBatchSize       int
	DefaultConcurrency     int
	LockTTL                time.Duration

	MonitorTasks []MonitorTask

	SlackWebhookURL string

	ArchiveBucket    string
	ArchiveAccountID string
	ArchiveAccessKey string
	ArchiveSecretKey string

	// PlatformAPIBaseURLTemplate is formatted with a platform name (via
	// fmt.Sprintf) to produce the base URL extraction nodes fetch from.
	PlatformAPIBaseURLTemplate string

	AdminAddr string

	// DefinitionMirrorPath is the sqlite file the workflow definition
	// mirror is opened against, for admin introspection of loaded
	// definitions without re-parsing the embedded YAML.
	DefinitionMirrorPath string
}

// Load reads configuration from the environment (optionally seeded by a
// local .env file) and validates it. It never panics; all failures surface
// as a descriptive error so callers can log-and-exit.
func Load() (*Config, error) {
	// Best-effort: a missing .env file is not an error, mirroring the
	// teacher's "local override, not a requirement" posture.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),

		StoreAddr:     getEnv("STORE_ADDR", "localhost:6379"),
		StorePassword: getEnv("STORE_PASSWORD", ""),

		Platforms: splitList(getEnv("PLATFORMS", "coupang,gmarket,11st")),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveAccountID: getEnv("ARCHIVE_ACCOUNT_ID", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),

		PlatformAPIBaseURLTemplate: getEnv("PLATFORM_API_BASE_URL_TEMPLATE", "https://api.%s.example.com"),
		AdminAddr:                  getEnv("ADMIN_ADDR", ":8090"),
		DefinitionMirrorPath:       getEnv("DEFINITION_MIRROR_PATH", "./data/workflows.db"),
	}

	var err error
	if cfg.StoreDB, err = getEnvInt("STORE_DB", 0); err != nil {
		return nil, err
	}
	if cfg.CheckInterval, err = getEnvDuration("CHECK_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.InterPlatformDelay, err = getEnvDuration("INTER_PLATFORM_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SamePlatformCooldown, err = getEnvDuration("SAME_PLATFORM_COOLDOWN", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.OnSaleRatio, err = getEnvInt("ON_SALE_RATIO", 4); err != nil {
		return nil, err
	}
	if cfg.DefaultLimit, err = getEnvInt("DEFAULT_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.DefaultBatchSize, err = getEnvInt("DEFAULT_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.DefaultConcurrency, err = getEnvInt("DEFAULT_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	cfg.MonitorTasks = defaultMonitorTasks()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("config: at least one platform must be configured via PLATFORMS")
	}
	if c.StoreAddr == "" {
		return fmt.Errorf("config: STORE_ADDR must not be empty")
	}
	if c.OnSaleRatio < 0 {
		return fmt.Errorf("config: ON_SALE_RATIO must be >= 0, got %d", c.OnSaleRatio)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("config: CHECK_INTERVAL must be positive, got %s", c.CheckInterval)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("config: LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	return nil
}

func defaultMonitorTasks() []MonitorTask {
	return []MonitorTask{
		{ID: "banner-links", Name: "Banner link check", URL: "https://shop.example.com/banners", Interval: 15 * time.Minute},
		{ID: "vote-links", Name: "Vote surface link check", URL: "https://shop.example.com/vote", Interval: 30 * time.Minute},
		{ID: "pick-links", Name: "Pick surface link check", URL: "https://shop.example.com/picks", Interval: 30 * time.Minute},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
