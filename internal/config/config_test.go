package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"), nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.File != "" {
		t.Fatalf("File = %q, want empty", cfg.File)
	}

	wantSession, err := expandPath(defaultSessionPath)
	if err != nil {
		t.Fatalf("expandPath(defaultSessionPath) returned error: %v", err)
	}
	if cfg.SessionPath != wantSession {
		t.Fatalf("SessionPath = %q, want %q", cfg.SessionPath, wantSession)
	}
	if cfg.PageSize != defaultPageSize || cfg.PollInterval != defaultPollInterval {
		t.Fatalf("PageSize/PollInterval = %d/%s, want defaults", cfg.PageSize, cfg.PollInterval)
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("RequestTimeout = %s, want none", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "warn" || cfg.Output != OutputTable {
		t.Fatalf("LogLevel/Output = %q/%q, want warn/table", cfg.LogLevel, cfg.Output)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_url = "  https://bpm.example.com  "
session_path = "  ~/.solarops/session.toml  "
page_size = 25
request_timeout = "15s"
poll_interval = "1m"
output = "JSON"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://bpm.example.com" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if !strings.HasPrefix(cfg.SessionPath, home) {
		t.Fatalf("SessionPath = %q, want it under HOME %q", cfg.SessionPath, home)
	}
	if cfg.PageSize != 25 {
		t.Fatalf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.RequestTimeout != 15*time.Second || cfg.PollInterval != time.Minute {
		t.Fatalf("durations = %s/%s, want 15s/1m", cfg.RequestTimeout, cfg.PollInterval)
	}
	if cfg.Output != OutputJSON {
		t.Fatalf("Output = %q, want json", cfg.Output)
	}
	if cfg.File != path {
		t.Fatalf("File = %q, want %q", cfg.File, path)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
api_url = "   "
session_path = ""
page_size = 0
poll_interval = "0s"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	wantSession, _ := expandPath(defaultSessionPath)
	if cfg.SessionPath != wantSession {
		t.Fatalf("SessionPath = %q, want %q", cfg.SessionPath, wantSession)
	}
	if cfg.PageSize != defaultPageSize || cfg.PollInterval != defaultPollInterval {
		t.Fatalf("PageSize/PollInterval = %d/%s, want defaults", cfg.PageSize, cfg.PollInterval)
	}
}

func TestLoad_EnvAndFlagsOverrideFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
api_url = "http://from-file:8080"
page_size = 5
log_level = "info"
`)
	t.Setenv("SOLAROPS_API_URL", "http://from-env:8080")
	t.Setenv("SOLAROPS_PAGE_SIZE", "50")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "")
	flags.String("log-level", "", "")
	flags.String("output", "table", "")
	if err := flags.Parse([]string{"--api-url", "http://from-flag:8080"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://from-flag:8080" {
		t.Fatalf("APIURL = %q, want flag value", cfg.APIURL)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("PageSize = %d, want env value 50", cfg.PageSize)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want file value (unset flag must not win)", cfg.LogLevel)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := writeConfig(t, `api_url = [`)
	_, err := Load(path, nil)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidOutputFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `output = "yaml"`)
	if _, err := Load(path, nil); err == nil || !strings.Contains(err.Error(), "invalid output") {
		t.Fatalf("Load error = %v, want invalid output", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
