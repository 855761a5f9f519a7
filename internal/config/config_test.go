package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log-level: info\n"), nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ReconnectDelay != 5*time.Second {
		t.Fatalf("reconnect delay = %v, want 5s", cfg.ReconnectDelay)
	}
	if cfg.ConfirmTimeout != 0 {
		t.Fatalf("confirm timeout = %v, want 0", cfg.ConfirmTimeout)
	}
	if !cfg.AllowAccounts || cfg.AllowAccountsAtStartup {
		t.Fatalf("account gating defaults wrong: %+v", cfg)
	}
	if cfg.PublishSlotStatus {
		t.Fatalf("slot status publishing must be off by default")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t,
		"amqp-url: amqp://file-host:5672\nprogram: bondxMyykdWLUZdBL8YWT2nXi9UhRNaVwcVuQxFuYwN\npublish-slot-status: true\n",
	), nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.AMQPURL != "amqp://file-host:5672" {
		t.Fatalf("amqp url = %q", cfg.AMQPURL)
	}
	if len(cfg.Programs) != 1 || cfg.Programs[0] != "bondxMyykdWLUZdBL8YWT2nXi9UhRNaVwcVuQxFuYwN" {
		t.Fatalf("programs = %v", cfg.Programs)
	}
	if !cfg.PublishSlotStatus {
		t.Fatalf("publish-slot-status not read from file")
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	t.Setenv("RELAY_AMQP_URL", "amqp://env-host:5672")

	cfg, err := Load(writeConfig(t, "amqp-url: amqp://file-host:5672\n"), nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.AMQPURL != "amqp://env-host:5672" {
		t.Fatalf("amqp url = %q, env must take precedence over config file", cfg.AMQPURL)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
