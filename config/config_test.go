package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  addr: ":8081"
auth:
  secret: "test-secret"
storage:
  backend: "sqlite"
notifier:
  backend: "mock"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  receipt_topic: "device/+/receipt"
  use_tls: false
dispatch:
  urgent_window_seconds: 90
  planned_window_hours: 12
availability:
  stale_after_minutes: 20
fees:
  service_percent: 12
  venue_percent: 8
metrics:
  prometheus_enabled: true
  prometheus_port: ":9091"
sweeper:
  offer_sweep_seconds: 5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":8081"},
		{"auth.secret", cfg.Auth.Secret, "test-secret"},
		{"storage.backend", cfg.Storage.Backend, "sqlite"},
		{"storage.path default", cfg.Storage.Path, "gigdispatch.db"},
		{"notifier.backend", cfg.Notifier.Backend, "mock"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"password", cfg.MQTT.Password, "pass"},
		{"receipt_topic", cfg.MQTT.ReceiptTopic, "device/+/receipt"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"urgent_window_seconds", cfg.Dispatch.UrgentWindowSeconds, 90},
		{"planned_window_hours", cfg.Dispatch.PlannedWindowHours, 12},
		{"receipt_timeout default", cfg.Dispatch.ReceiptTimeoutSeconds, 5},
		{"stale_after_minutes", cfg.Availability.StaleAfterMinutes, 20},
		{"service_percent", cfg.Fees.ServicePercent, int64(12)},
		{"venue_percent", cfg.Fees.VenuePercent, int64(8)},
		{"prometheus_port", cfg.Metrics.PrometheusPort, ":9091"},
		{"offer_sweep_seconds", cfg.Sweeper.OfferSweepSeconds, 5},
		{"location_sweep default", cfg.Sweeper.LocationSweepSeconds, 60},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing auth secret")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "auth:\n  secret: \"s\"\nstorage:\n  backend: \"postgres\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
