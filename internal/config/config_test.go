package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Server.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", c.Server.MetricsAddr)
	}
	if c.Array.MaxArraySize != 10000 {
		t.Errorf("MaxArraySize = %d, want 10000", c.Array.MaxArraySize)
	}
	if c.Array.CredRenewPeriod != 3600*time.Second {
		t.Errorf("CredRenewPeriod = %s, want 3600s", c.Array.CredRenewPeriod)
	}
}

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", c.Logging.Level)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobcore.yaml")
	content := "array:\n  max_array_size: 500\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Array.MaxArraySize != 500 {
		t.Errorf("MaxArraySize = %d, want 500", c.Array.MaxArraySize)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", c.Logging.Level)
	}
	// Untouched-by-file fields keep their defaults.
	if c.Store.TableName != "jobcore-jobs" {
		t.Errorf("TableName = %q, want default jobcore-jobs", c.Store.TableName)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobcore.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("JOBCORE_LOG_LEVEL", "warn")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn (env should win over file)", c.Logging.Level)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/jobcore.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfig_CredTunables(t *testing.T) {
	c := Default()
	tun := c.CredTunables()
	if tun.RenewPeriod != c.Array.CredRenewPeriod {
		t.Errorf("CredTunables().RenewPeriod = %s, want %s", tun.RenewPeriod, c.Array.CredRenewPeriod)
	}
}

func TestConfig_MaxArraySize_FallsBackWhenUnset(t *testing.T) {
	c := Default()
	c.Array.MaxArraySize = 0
	if got := c.MaxArraySize(); got != 10000 {
		t.Errorf("MaxArraySize() = %d, want 10000 fallback", got)
	}
}
