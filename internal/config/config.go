// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DraftBackendMemory = "memory"
	DraftBackendRedis  = "redis"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// PhoneRegion is the default region used to parse contact numbers without a country code.
	PhoneRegion string `yaml:"phone_region"`
	// DraftTTL bounds how long an untouched booking draft is kept.
	DraftTTL time.Duration `yaml:"draft_ttl"`
	// ReminderLeadTime is how far ahead of the start a reminder email goes out.
	ReminderLeadTime time.Duration `yaml:"reminder_lead_time"`
	// TimeZone is the IANA zone that booked dates and slots are written in.
	// It decides which calendar day is today for the wizard and the jobs.
	TimeZone string `yaml:"time_zone"`
}

type DraftsConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"-"` // Loaded from environment
	KeyPrefix     string `yaml:"key_prefix"`
}

type SocialConfig struct {
	SimulatedLatency time.Duration `yaml:"simulated_latency"`
	// MaxViewers caps how many viewers keep toggle state in memory.
	MaxViewers    int           `yaml:"max_viewers"`
	ViewerIdleTTL time.Duration `yaml:"viewer_idle_ttl"`
	// MaxStories caps the posted stories kept in memory.
	MaxStories int `yaml:"max_stories"`
}

type EmailConfig struct {
	Sender          string `yaml:"sender"`
	SupportAddress  string `yaml:"support_address"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

type SchedulerConfig struct {
	DraftCleanupCron      string `yaml:"draft_cleanup_cron"`
	ReminderCron          string `yaml:"reminder_cron"`
	BookingSweepCron      string `yaml:"booking_sweep_cron"`
	RateLimitSweepCron    string `yaml:"rate_limit_sweep_cron"`
	SocialPruneCron       string `yaml:"social_prune_cron"`
	DisableBackgroundJobs bool   `yaml:"disable_background_jobs"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		BaseURL         string        `yaml:"base_url"`
		SeedDemoData    bool          `yaml:"seed_demo_data"`
		TrustProxy      bool          `yaml:"trust_proxy"`
		StaticDir       string        `yaml:"static_dir"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SecretKey       string        `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Booking   BookingConfig   `yaml:"booking"`
	Drafts    DraftsConfig    `yaml:"drafts"`
	Social    SocialConfig    `yaml:"social"`
	Email     EmailConfig     `yaml:"email"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	location *time.Location
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Drafts.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Email.AccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30 * time.Second
	}
	if c.App.StaticDir == "" {
		c.App.StaticDir = "build/bin/static"
	}
	if c.Booking.PhoneRegion == "" {
		c.Booking.PhoneRegion = "US"
	}
	if c.Booking.DraftTTL == 0 {
		c.Booking.DraftTTL = 2 * time.Hour
	}
	if c.Booking.ReminderLeadTime == 0 {
		c.Booking.ReminderLeadTime = 24 * time.Hour
	}
	if c.Booking.TimeZone == "" {
		c.Booking.TimeZone = "UTC"
	}
	if c.Drafts.Backend == "" {
		c.Drafts.Backend = DraftBackendMemory
	}
	if c.Drafts.KeyPrefix == "" {
		c.Drafts.KeyPrefix = "excursions:draft:"
	}
	if c.Social.SimulatedLatency == 0 {
		c.Social.SimulatedLatency = 800 * time.Millisecond
	}
	if c.Social.MaxViewers == 0 {
		c.Social.MaxViewers = 10000
	}
	if c.Social.ViewerIdleTTL == 0 {
		c.Social.ViewerIdleTTL = 30 * 24 * time.Hour
	}
	if c.Social.MaxStories == 0 {
		c.Social.MaxStories = 200
	}
	if c.Scheduler.DraftCleanupCron == "" {
		c.Scheduler.DraftCleanupCron = "*/5 * * * *"
	}
	if c.Scheduler.ReminderCron == "" {
		c.Scheduler.ReminderCron = "*/15 * * * *"
	}
	if c.Scheduler.BookingSweepCron == "" {
		c.Scheduler.BookingSweepCron = "10 0 * * *"
	}
	if c.Scheduler.RateLimitSweepCron == "" {
		c.Scheduler.RateLimitSweepCron = "*/10 * * * *"
	}
	if c.Scheduler.SocialPruneCron == "" {
		c.Scheduler.SocialPruneCron = "30 * * * *"
	}
}

// Location returns the booking time zone. It is UTC until Validate has
// resolved Booking.TimeZone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Now is the current instant in the booking time zone.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location())
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// SESConfigured reports whether outbound email can be delivered through SES.
func (c *Config) SESConfigured() bool {
	return c.Email.AccessKeyID != "" && c.Email.SecretAccessKey != "" && c.Email.Region != "" && c.Email.Sender != ""
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.App.SecretKey == "" && !c.IsDevelopment() {
		return fmt.Errorf("APP_SECRET_KEY is required outside development")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Drafts.Backend {
	case DraftBackendMemory:
	case DraftBackendRedis:
		if strings.TrimSpace(c.Drafts.RedisAddr) == "" {
			return fmt.Errorf("drafts redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported drafts backend: %s", c.Drafts.Backend)
	}

	if c.Booking.DraftTTL < time.Minute {
		return fmt.Errorf("booking draft_ttl must be at least 1m")
	}
	loc, err := time.LoadLocation(c.Booking.TimeZone)
	if err != nil {
		return fmt.Errorf("booking time_zone is invalid: %w", err)
	}
	c.location = loc
	if c.Social.SimulatedLatency < 0 {
		return fmt.Errorf("social simulated_latency must not be negative")
	}
	if c.Social.MaxViewers < 0 || c.Social.MaxStories < 0 || c.Social.ViewerIdleTTL < 0 {
		return fmt.Errorf("social limits must not be negative")
	}

	cronFields := map[string]string{
		"draft_cleanup_cron":    c.Scheduler.DraftCleanupCron,
		"reminder_cron":         c.Scheduler.ReminderCron,
		"booking_sweep_cron":    c.Scheduler.BookingSweepCron,
		"rate_limit_sweep_cron": c.Scheduler.RateLimitSweepCron,
		"social_prune_cron":     c.Scheduler.SocialPruneCron,
	}
	for name, expr := range cronFields {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("scheduler %s is invalid: %w", name, err)
		}
	}

	return nil
}
