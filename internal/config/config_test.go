// Copyright 2025 James Ross
package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shift.MaxHours != 12.0 {
		t.Fatalf("expected default shift.max_hours 12.0, got %v", cfg.Shift.MaxHours)
	}
	if cfg.Monitor.CooldownSec != 3600 {
		t.Fatalf("expected default monitor.cooldown_sec 3600, got %d", cfg.Monitor.CooldownSec)
	}
	if cfg.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Shift.MaxHours = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for shift.max_hours <= shift.min_hours")
	}

	cfg = defaultConfig()
	cfg.Monitor.QueueCapacity = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for monitor.queue_capacity <= 0")
	}

	cfg = defaultConfig()
	cfg.Optimizer.TargetUtilization = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for optimizer.target_utilization out of range")
	}
}

func TestValidatePasses(t *testing.T) {
	cfg := defaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("WORKER_COUNT")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Count != 16 {
		t.Fatalf("expected default worker count 16, got %d", cfg.Worker.Count)
	}
	if cfg.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Worker.Count = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for worker.count < 1")
	}
	cfg = defaultConfig()
	cfg.Worker.HeartbeatTTL = 3 * 1e9 // 3s
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for heartbeat ttl < 5s")
	}
	cfg = defaultConfig()
	cfg.Worker.BRPopLPushTimeout = cfg.Worker.HeartbeatTTL
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for brpoplpush_timeout > heartbeat_ttl/2")
	}
}
