package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "DATA_DIR", "MONGO_URI", "DATABASE_URL", "BILL_PREFIX", "TOTAL_TOLERANCE", "PRODUCT_CACHE_TTL_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" || cfg.Address() != ":8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.BillPrefix != "INV" || cfg.TotalTolerance != 0.01 || cfg.ProductCacheTTLSeconds != 30 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("TOTAL_TOLERANCE", "abc")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.TotalTolerance != 0.01 {
		t.Fatalf("expected fallback 0.01, got %v", cfg.TotalTolerance)
	}
}

func TestStoreBackendSelection(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"explicit wins", map[string]string{"STORE_BACKEND": "Postgres", "DATA_DIR": "/tmp/x"}, BackendPostgres},
		{"data dir", map[string]string{"DATA_DIR": "/tmp/x", "MONGO_URI": "mongodb://x"}, BackendFile},
		{"mongo", map[string]string{"MONGO_URI": "mongodb://x", "DATABASE_URL": "postgres://x"}, BackendMongo},
		{"postgres", map[string]string{"DATABASE_URL": "postgres://x"}, BackendPostgres},
		{"unknown explicit falls back", map[string]string{"STORE_BACKEND": "sqlite"}, BackendMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"STORE_BACKEND", "DATA_DIR", "MONGO_URI", "DATABASE_URL"} {
				t.Setenv(key, tt.env[key])
			}
			if got := Load().StoreBackend; got != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
