package config

import (
	"fmt"
	"strings"

	"github.com/solatis/formkeeper/internal/rules"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"host":      "server.host",
	"grpc-port": "server.grpc_port",
	"http-port": "server.http_port",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags the user actually set take effect.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	v := viper.New()

	d := DefaultServerConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.grpc_port", d.GRPCPort)
	v.SetDefault("server.http_port", d.HTTPPort)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("server.shutdown_timeout", d.ShutdownTimeout.String())
	v.SetDefault("engine.cache_size", d.CacheSize)
	v.SetDefault("engine.max_condition_depth", d.MaxConditionDepth)
	v.SetDefault("engine.max_document_size", d.MaxDocumentSize)

	// FK_SERVER_GRPC_PORT overrides server.grpc_port
	v.SetEnvPrefix("FK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &ServerConfig{
		Host:              v.GetString("server.host"),
		GRPCPort:          v.GetInt("server.grpc_port"),
		HTTPPort:          v.GetInt("server.http_port"),
		MaxConnections:    v.GetInt("server.max_connections"),
		RequestTimeout:    v.GetDuration("server.request_timeout"),
		ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
		CacheSize:         v.GetInt("engine.cache_size"),
		MaxConditionDepth: v.GetInt("engine.max_condition_depth"),
		MaxDocumentSize:   v.GetInt("engine.max_document_size"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive limits.
func validateConfig(cfg *ServerConfig) error {
	if cfg.GRPCPort <= 0 || cfg.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 1 and 65535, got %d", cfg.GRPCPort)
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", cfg.HTTPPort)
	}
	if cfg.GRPCPort == cfg.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ, both are %d", cfg.GRPCPort)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.MaxConditionDepth <= 0 || cfg.MaxConditionDepth > rules.MaxEvalDepth {
		return fmt.Errorf("max_condition_depth must be between 1 and %d, got %d", rules.MaxEvalDepth, cfg.MaxConditionDepth)
	}
	if cfg.MaxDocumentSize <= 0 {
		return fmt.Errorf("max_document_size must be positive, got %d", cfg.MaxDocumentSize)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig ignores the environment, so FK_HMAC_SECRET itself never trips it.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use FK_HMAC_SECRET environment variable)")
	}
	return nil
}
