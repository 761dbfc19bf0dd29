package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "AIRTABLE_TABLE_NAME", "AIRTABLE_BASE_URL",
		"AIRTABLE_TIMEOUT", "CORS_ALLOWED_ORIGINS", "FALLBACK_PHONE", "CHAT_SCRIPT",
		"CHAT_SESSION_TTL", "AIRTABLE_API_KEY", "AIRTABLE_BASE_ID",
	} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.IsProduction() {
		t.Fatalf("development should not be production")
	}
	if cfg.AirtableTableName != "Clients" {
		t.Fatalf("expected default table, got %s", cfg.AirtableTableName)
	}
	if cfg.AirtableBaseURL != "https://api.airtable.com" {
		t.Fatalf("expected default airtable url, got %s", cfg.AirtableBaseURL)
	}
	if cfg.AirtableTimeout != 15*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.AirtableTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.FallbackPhone != "(616) 228-5159" {
		t.Fatalf("expected default fallback phone, got %s", cfg.FallbackPhone)
	}
	if cfg.ChatScript != "service_first" {
		t.Fatalf("expected default script, got %s", cfg.ChatScript)
	}
	if cfg.ChatSessionTTL != 30*time.Minute {
		t.Fatalf("expected default session ttl, got %s", cfg.ChatSessionTTL)
	}
	if cfg.AirtableConfigured() {
		t.Fatalf("airtable should not be configured without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "Production")
	t.Setenv("AIRTABLE_API_KEY", "pat-test")
	t.Setenv("AIRTABLE_BASE_ID", "appTest")
	t.Setenv("AIRTABLE_BASE_URL", "http://localhost:9999/")
	t.Setenv("AIRTABLE_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://figures.solutions, https://www.figures.solutions,")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("CHAT_SESSION_TTL", "bogus")
	t.Setenv("CONTACT_ENDPOINT_URL", "https://example.com/")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if !cfg.AirtableConfigured() {
		t.Fatalf("expected airtable configured")
	}
	if cfg.AirtableBaseURL != "http://localhost:9999" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.AirtableBaseURL)
	}
	if cfg.AirtableTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.AirtableTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://www.figures.solutions" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 0.5 || cfg.RateLimitBurst != 4 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.ChatSessionTTL != 30*time.Minute {
		t.Fatalf("invalid duration should fall back to default, got %s", cfg.ChatSessionTTL)
	}
	if cfg.ContactEndpointURL != "https://example.com" {
		t.Fatalf("unexpected contact endpoint %s", cfg.ContactEndpointURL)
	}
}
