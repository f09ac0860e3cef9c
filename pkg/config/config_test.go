package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ServerPort != 3001 {
		t.Errorf("ServerPort = %d", cfg.ServerPort)
	}
	if cfg.InvitationTTL != 7*24*time.Hour {
		t.Errorf("InvitationTTL = %s", cfg.InvitationTTL)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Database().Port != 5432 {
		t.Errorf("database port = %d", cfg.Database().Port)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://hr.example.com")
	t.Setenv("INVITATION_SWEEP_INTERVAL", "0s")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ServerPort != 9090 || cfg.CORSAllowedOrigins[0] != "https://hr.example.com" || cfg.InvitationSweepInterval != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Parse()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestSampleRatioBounds(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "1.5")
	if _, err := Parse(); err == nil || !strings.Contains(err.Error(), "OTEL_TRACES_SAMPLE_RATIO") {
		t.Fatalf("expected ratio error, got %v", err)
	}

	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tc := cfg.Tracing(); tc.SampleRatio != 0.25 || tc.Endpoint != "collector:4318" {
		t.Fatalf("tracing config = %+v", tc)
	}
}

func TestTrustedProxiesList(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("no proxy should be trusted by default, got %v", cfg.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.10")
	cfg, err = Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1] != "192.168.1.10" {
		t.Fatalf("TrustedProxies = %v", cfg.TrustedProxies)
	}
}
