package config

import "testing"

type testConfig struct {
	Addr    string `env:"ARENA_ADDR" envDefault:":8080"`
	DBPath  string `env:"ARENA_DB_PATH" envDefault:"arena.db"`
	Retries int    `env:"ARENA_DECISION_RETRIES" envDefault:"2"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Retries != 2 {
		t.Fatalf("expected default retries 2, got %d", cfg.Retries)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("ARENA_ADDR", ":9999")
	t.Setenv("ARENA_DECISION_RETRIES", "5")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected overridden addr, got %q", cfg.Addr)
	}
	if cfg.Retries != 5 {
		t.Fatalf("expected overridden retries 5, got %d", cfg.Retries)
	}
}
