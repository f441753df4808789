// Package config loads application settings from .env, an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Model          ModelConfig          `yaml:"model"`
	Loader         LoaderConfig         `yaml:"loader"`
	Sessions       SessionsConfig       `yaml:"sessions"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	GCS            GCSConfig            `yaml:"gcs"`
	BigQuery       BigQueryConfig       `yaml:"bigquery"`
	Server         ServerConfig         `yaml:"server"`
	Report         ReportConfig         `yaml:"report"`
	Notion         NotionConfig         `yaml:"notion"`
	Log            LogConfig            `yaml:"log"`
}

type ModelConfig struct {
	Name        string        `yaml:"name"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	ChatMaxRows int           `yaml:"chat_max_rows"`
}

type LoaderConfig struct {
	HeaderScanRows int `yaml:"header_scan_rows"`
}

type SessionsConfig struct {
	Dir             string `yaml:"dir"`
	RetentionDays   int    `yaml:"retention_days"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
	Timezone        string `yaml:"timezone"`
}

// Retention is RetentionDays as a duration.
func (s SessionsConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

type ReconciliationConfig struct {
	Dir string `yaml:"dir"`
}

type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// Enabled reports whether run history should be written.
func (b BigQueryConfig) Enabled() bool { return b.Project != "" }

type ServerConfig struct {
	Port string `yaml:"port"`
}

type ReportConfig struct {
	RenderMarkdown bool `yaml:"render_markdown"`
}

// NotionConfig points at the checklist database sessions are mirrored to.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// Enabled reports whether checklist sync is configured.
func (n NotionConfig) Enabled() bool { return n.Token != "" && n.DatabaseID != "" }

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default values.
const (
	DefaultModelName       = "gemini-2.5-flash"
	DefaultModelTimeout    = 5 * time.Minute
	DefaultTemperature     = 0.1
	DefaultChatMaxRows     = 500
	DefaultHeaderScanRows  = 20
	DefaultSessionsDir     = ".sessions"
	DefaultRetentionDays   = 7
	DefaultCleanupSchedule = "0 3 * * *"
	DefaultTimezone        = "UTC"
	DefaultDataset         = "balance_sheet_buddy"
	DefaultPort            = "8080"
	DefaultLogLevel        = "info"
)

// Load reads .env (if present), then the YAML file at path (if path is not
// empty), then environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(&c.Model.Name, "GEMINI_MODEL")
	str(&c.Model.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if v, ok := lookup("MODEL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MODEL_TIMEOUT: %w", err))
		} else {
			c.Model.Timeout = d
		}
	}
	if v, ok := lookup("MODEL_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("MODEL_TEMPERATURE: %w", err))
		} else {
			c.Model.Temperature = float32(f)
		}
	}
	num(&c.Model.ChatMaxRows, "CHAT_MAX_ROWS")
	num(&c.Loader.HeaderScanRows, "HEADER_SCAN_ROWS")
	str(&c.Sessions.Dir, "SESSIONS_DIR")
	num(&c.Sessions.RetentionDays, "SESSION_RETENTION_DAYS")
	str(&c.Sessions.CleanupSchedule, "SESSION_CLEANUP_SCHEDULE")
	str(&c.Sessions.Timezone, "TZ_NAME")
	str(&c.Reconciliation.Dir, "RECONCILIATION_DIR")
	str(&c.GCS.Bucket, "GCS_BUCKET")
	str(&c.BigQuery.Project, "BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT")
	str(&c.BigQuery.Dataset, "BIGQUERY_DATASET")
	str(&c.Server.Port, "PORT")
	if v, ok := lookup("REPORT_RENDER_MARKDOWN"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REPORT_RENDER_MARKDOWN: %w", err))
		} else {
			c.Report.RenderMarkdown = b
		}
	}
	str(&c.Notion.Token, "NOTION_TOKEN")
	str(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	str(&c.Log.Level, "LOG_LEVEL")

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = DefaultModelTimeout
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = DefaultTemperature
	}
	if c.Model.ChatMaxRows == 0 {
		c.Model.ChatMaxRows = DefaultChatMaxRows
	}
	if c.Loader.HeaderScanRows == 0 {
		c.Loader.HeaderScanRows = DefaultHeaderScanRows
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = DefaultSessionsDir
	}
	if c.Sessions.RetentionDays == 0 {
		c.Sessions.RetentionDays = DefaultRetentionDays
	}
	if c.Sessions.CleanupSchedule == "" {
		c.Sessions.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.Sessions.Timezone == "" {
		c.Sessions.Timezone = DefaultTimezone
	}
	if c.Reconciliation.Dir == "" {
		c.Reconciliation.Dir = c.Sessions.Dir
	}
	if c.BigQuery.Dataset == "" {
		c.BigQuery.Dataset = DefaultDataset
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Timeout < 0 {
		errs = append(errs, fmt.Errorf("model.timeout must not be negative"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be between 0 and 2, got %v", c.Model.Temperature))
	}
	if c.Model.ChatMaxRows < 0 {
		errs = append(errs, fmt.Errorf("model.chat_max_rows must not be negative"))
	}
	if c.Loader.HeaderScanRows < 1 {
		errs = append(errs, fmt.Errorf("loader.header_scan_rows must be at least 1"))
	}
	if c.Sessions.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("sessions.retention_days must be at least 1"))
	}
	if _, err := time.LoadLocation(c.Sessions.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("sessions.timezone: %w", err))
	}
	if strings.HasPrefix(c.GCS.Bucket, "gs://") {
		errs = append(errs, fmt.Errorf("gcs.bucket must be a bucket name, not a URI"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a valid level", c.Log.Level))
	}
	return errors.Join(errs...)
}

// RequireAPIKey reports a missing model API key.
func (c *Config) RequireAPIKey() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY is not set")
	}
	return nil
}
