package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("tauth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TAuthIssuer != "tauth" || cfg.TAuthCookieName != "app_session" {
		t.Fatalf("unexpected session settings %q/%q", cfg.TAuthIssuer, cfg.TAuthCookieName)
	}
	if cfg.MaxPageSize != 100 {
		t.Fatalf("unexpected max page size %d", cfg.MaxPageSize)
	}
	if cfg.CategoriesTTL != 30*time.Second {
		t.Fatalf("unexpected categories ttl %s", cfg.CategoriesTTL)
	}
	if cfg.AdminRole != "admin" || len(cfg.AdminUserIDs) != 0 {
		t.Fatalf("unexpected admin settings %q/%v", cfg.AdminRole, cfg.AdminUserIDs)
	}
	if cfg.CacheEnabled() {
		t.Fatalf("expected cache to be disabled without redis address")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("FORUM_TAUTH_SIGNING_SECRET", "from-env")
	t.Setenv("FORUM_FORUM_ADMIN_USER_IDS", "uid-1, uid-2,,")
	t.Setenv("FORUM_REDIS_ADDRESS", "cache:6379")
	t.Setenv("FORUM_CACHE_CATEGORIES_TTL", "2m")
	t.Setenv("FORUM_LOG_FORMAT", "console")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.TAuthSigningKey != "from-env" {
		t.Fatalf("expected signing secret from env, got %q", cfg.TAuthSigningKey)
	}
	if len(cfg.AdminUserIDs) != 2 || cfg.AdminUserIDs[0] != "uid-1" || cfg.AdminUserIDs[1] != "uid-2" {
		t.Fatalf("unexpected admin ids %#v", cfg.AdminUserIDs)
	}
	if !cfg.CacheEnabled() || cfg.RedisAddress != "cache:6379" {
		t.Fatalf("expected redis cache to be enabled, got %q", cfg.RedisAddress)
	}
	if cfg.CategoriesTTL != 2*time.Minute {
		t.Fatalf("unexpected categories ttl %s", cfg.CategoriesTTL)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("unexpected log format %q", cfg.LogFormat)
	}
}

func TestLoadValidates(t *testing.T) {
	testCases := []struct {
		name  string
		apply func(map[string]any)
	}{
		{name: "missing secret", apply: func(values map[string]any) { delete(values, "tauth.signing_secret") }},
		{name: "blank database", apply: func(values map[string]any) { values["database.path"] = " " }},
		{name: "non-positive page size", apply: func(values map[string]any) { values["forum.max_page_size"] = 0 }},
		{name: "unknown log format", apply: func(values map[string]any) { values["log.format"] = "xml" }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			values := map[string]any{"tauth.signing_secret": "secret"}
			testCase.apply(values)
			configViper := NewViper()
			for key, value := range values {
				configViper.Set(key, value)
			}
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
