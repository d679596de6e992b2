// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("WORKER_CONCURRENCY")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Fatalf("expected default worker concurrency 4, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Database.URL == "" {
		t.Fatalf("expected default database url")
	}
	if cfg.Environment != EnvDevelopment {
		t.Fatalf("expected default environment development, got %s", cfg.Environment)
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Worker.Concurrency = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for worker.concurrency < 1")
	}

	cfg = defaultConfig()
	cfg.Worker.LockTTL = 3 * time.Second
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for lock_ttl_ms < 5s")
	}

	cfg = defaultConfig()
	cfg.Database.URL = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing database.url")
	}

	cfg = defaultConfig()
	cfg.ObjectStore.Bucket = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing object_store.bucket")
	}

	cfg = defaultConfig()
	cfg.Environment = "bogus"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for invalid environment")
	}
}
