package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_MODEL", "GEMINI_API_KEY", "GOOGLE_API_KEY", "MODEL_TIMEOUT", "MODEL_TEMPERATURE",
		"CHAT_MAX_ROWS", "HEADER_SCAN_ROWS", "SESSIONS_DIR", "SESSION_RETENTION_DAYS",
		"SESSION_CLEANUP_SCHEDULE", "TZ_NAME", "RECONCILIATION_DIR", "GCS_BUCKET",
		"BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT", "BIGQUERY_DATASET", "PORT",
		"REPORT_RENDER_MARKDOWN", "NOTION_TOKEN", "NOTION_DATABASE_ID", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.Name != DefaultModelName || cfg.Model.Timeout != 5*time.Minute || cfg.Model.ChatMaxRows != 500 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Loader.HeaderScanRows != 20 || cfg.Sessions.RetentionDays != 7 || cfg.Sessions.Retention() != 7*24*time.Hour {
		t.Errorf("loader/sessions = %+v / %+v", cfg.Loader, cfg.Sessions)
	}
	if cfg.Reconciliation.Dir != cfg.Sessions.Dir || cfg.Server.Port != "8080" || cfg.Log.Level != "info" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.BigQuery.Enabled() {
		t.Error("BigQuery should be disabled without a project")
	}
	if cfg.Notion.Enabled() {
		t.Error("Notion sync should be disabled without a token")
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Error("expected missing API key error")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
model:
  name: gemini-2.5-pro
  timeout: 90s
  temperature: 0.3
loader:
  header_scan_rows: 40
sessions:
  dir: /var/lib/bsb/sessions
  retention_days: 14
bigquery:
  project: my-project
report:
  render_markdown: true
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_API_KEY", "secret")
	t.Setenv("HEADER_SCAN_ROWS", "25")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"model name from file", cfg.Model.Name, "gemini-2.5-pro"},
		{"timeout from file", cfg.Model.Timeout, 90 * time.Second},
		{"temperature from file", cfg.Model.Temperature, float32(0.3)},
		{"api key fallback env", cfg.Model.APIKey, "secret"},
		{"env overrides file", cfg.Loader.HeaderScanRows, 25},
		{"sessions dir", cfg.Sessions.Dir, "/var/lib/bsb/sessions"},
		{"reconciliation defaults to sessions dir", cfg.Reconciliation.Dir, "/var/lib/bsb/sessions"},
		{"retention", cfg.Sessions.RetentionDays, 14},
		{"port", cfg.Server.Port, "9090"},
		{"markdown", cfg.Report.RenderMarkdown, true},
		{"dataset default", cfg.BigQuery.Dataset, DefaultDataset},
		{"bigquery enabled", cfg.BigQuery.Enabled(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("model: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected YAML parse error")
	}

	t.Setenv("CHAT_MAX_ROWS", "many")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "CHAT_MAX_ROWS") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"scan rows", func(c *Config) { c.Loader.HeaderScanRows = -1 }, "loader.header_scan_rows"},
		{"retention", func(c *Config) { c.Sessions.RetentionDays = -2 }, "sessions.retention_days"},
		{"timezone", func(c *Config) { c.Sessions.Timezone = "Mars/Olympus" }, "sessions.timezone"},
		{"bucket uri", func(c *Config) { c.GCS.Bucket = "gs://bucket" }, "gcs.bucket"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":         "primary",
		"GOOGLE_API_KEY":         "secondary",
		"MODEL_TIMEOUT":          "2m",
		"REPORT_RENDER_MARKDOWN": "true",
		"LOG_LEVEL":              "debug",
		"NOTION_TOKEN":           "secret_abc",
		"NOTION_DATABASE_ID":     "db-1",
	}
	c := &Config{}
	err := c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if c.Model.APIKey != "primary" || c.Model.Timeout != 2*time.Minute || !c.Report.RenderMarkdown || c.Log.Level != "debug" || !c.Notion.Enabled() {
		t.Errorf("config = %+v", c)
	}
}
