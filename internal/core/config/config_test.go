package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestHMACSecrets(t *testing.T) {
	// Clean environment
	os.Unsetenv("FK_HMAC_SECRET")
	os.Unsetenv("FK_HMAC_SECRET_1")
	os.Unsetenv("FK_HMAC_SECRET_2")

	t.Run("single secret", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("FK_HMAC_SECRET_2", "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET_1")
		defer os.Unsetenv("FK_HMAC_SECRET_2")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET", "invalid_format")
		defer os.Unsetenv("FK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("invalid secret_id length", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET", "short:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for short secret_id")
		}
	})

	t.Run("non-hex secret_id", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET", "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for non-hex secret_id")
		}
	})

	t.Run("duplicate secret_id in numbered secrets", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("FK_HMAC_SECRET_2", "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET_1")
		defer os.Unsetenv("FK_HMAC_SECRET_2")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for duplicate secret_id")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		os.Setenv("FK_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		os.Setenv("FK_HMAC_SECRET_1", "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("FK_HMAC_SECRET")
		defer os.Unsetenv("FK_HMAC_SECRET_1")

		_, err := HMACSecrets()
		if err == nil {
			t.Error("expected error for duplicate secret_id between FK_HMAC_SECRET and FK_HMAC_SECRET_1")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if diff := cmp.Diff(DefaultServerConfig(), cfg); diff != "" {
			t.Errorf("defaults mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("FK_SERVER_GRPC_PORT", "9999")
		t.Setenv("FK_SERVER_HOST", "127.0.0.1")
		t.Setenv("FK_ENGINE_CACHE_SIZE", "16")

		cfg, err := LoadConfig("", nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.GRPCPort != 9999 {
			t.Errorf("expected grpc port 9999, got %d", cfg.GRPCPort)
		}
		if cfg.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Host)
		}
		if cfg.CacheSize != 16 {
			t.Errorf("expected cache_size 16, got %d", cfg.CacheSize)
		}
		if cfg.GRPCAddr() != "127.0.0.1:9999" {
			t.Errorf("expected addr 127.0.0.1:9999, got %s", cfg.GRPCAddr())
		}
	})

	t.Run("flag override", func(t *testing.T) {
		t.Setenv("FK_SERVER_HTTP_PORT", "8181")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Int("http-port", 8080, "")
		flags.Int("grpc-port", 50051, "")
		if err := flags.Parse([]string{"--http-port=9191"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig("", flags)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.HTTPPort != 9191 {
			t.Errorf("expected flag to win with 9191, got %d", cfg.HTTPPort)
		}
		if cfg.GRPCPort != 50051 {
			t.Errorf("unset flag should not override, got %d", cfg.GRPCPort)
		}
	})

	invalid := []struct {
		name  string
		env   string
		value string
	}{
		{"grpc port out of range", "FK_SERVER_GRPC_PORT", "70000"},
		{"http port zero", "FK_SERVER_HTTP_PORT", "0"},
		{"ports collide", "FK_SERVER_HTTP_PORT", "50051"},
		{"negative max_connections", "FK_SERVER_MAX_CONNECTIONS", "-1"},
		{"zero cache size", "FK_ENGINE_CACHE_SIZE", "0"},
		{"condition depth too large", "FK_ENGINE_MAX_CONDITION_DEPTH", "5000"},
		{"condition depth zero", "FK_ENGINE_MAX_CONDITION_DEPTH", "0"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			if _, err := LoadConfig("", nil); err == nil {
				t.Errorf("expected error for %s=%s", tt.env, tt.value)
			}
		})
	}

	t.Run("request timeout from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  request_timeout: 5s\nengine:\n  max_condition_depth: 8\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RequestTimeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", cfg.RequestTimeout)
		}
		if cfg.MaxConditionDepth != 8 {
			t.Errorf("expected max_condition_depth 8, got %d", cfg.MaxConditionDepth)
		}
	})
}

func TestParseHMACSecret(t *testing.T) {
	t.Run("valid base64", func(t *testing.T) {
		secret, err := ParseHMACSecret("dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err != nil {
			t.Fatalf("ParseHMACSecret failed: %v", err)
		}
		if len(secret) < 32 {
			t.Errorf("secret too short: %d bytes", len(secret))
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := ParseHMACSecret("not-valid-base64!!!")
		if err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("secret too short", func(t *testing.T) {
		_, err := ParseHMACSecret("c2hvcnQ=") // "short" in base64
		if err == nil {
			t.Error("expected error for secret < 32 bytes")
		}
	})
}

func TestParseHMACSecretWithID(t *testing.T) {
	t.Run("valid format", func(t *testing.T) {
		secretID, secret, err := ParseHMACSecretWithID("0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err != nil {
			t.Fatalf("ParseHMACSecretWithID failed: %v", err)
		}
		if secretID != "0123456789abcdef0123456789abcdef" {
			t.Errorf("unexpected secret_id: %s", secretID)
		}
		if len(secret) == 0 {
			t.Error("secret should not be empty")
		}
	})

	t.Run("missing colon", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("0123456789abcdef0123456789abcdef")
		if err == nil {
			t.Error("expected error for missing colon")
		}
	})

	t.Run("invalid secret_id length", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err == nil {
			t.Error("expected error for short secret_id")
		}
	})

	t.Run("non-hex chars in secret_id", func(t *testing.T) {
		_, _, err := ParseHMACSecretWithID("0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		if err == nil {
			t.Error("expected error for non-hex secret_id")
		}
	})
}
