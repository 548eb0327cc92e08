package main

import (
	"testing"
	"time"
)

func TestLoadConfigConnectTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bandpractice_test")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.DBConnectTimeout != 30*time.Second {
		t.Fatalf("expected the 30s default, got %s", cfg.DBConnectTimeout)
	}

	t.Setenv("DB_CONNECT_TIMEOUT", "2m")
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.DBConnectTimeout != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", cfg.DBConnectTimeout)
	}
}

func TestLoadConfigRejectsBadConnectTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bandpractice_test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_CONNECT_TIMEOUT", "soon")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected an error for an unparsable DB_CONNECT_TIMEOUT")
	}
}
