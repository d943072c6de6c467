package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/blackdoglabs/analytics-platform/internal/auth"
)

// Config is the top-level application configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	CORS   CORSConfig   `koanf:"cors"`
	Auth   AuthConfig   `koanf:"auth"`

	// Identities is resolved from Auth.Tokens by Load.
	Identities map[string]auth.Identity `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type CORSConfig struct {
	// AllowedOrigins is a comma-separated list of origins.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Origins returns the allowed origins as a slice.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type AuthConfig struct {
	// Tokens format: "token=tenant:user:role,token=tenant:user:role".
	Tokens string `koanf:"tokens"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if len(c.Origins()) == 0 {
		return fmt.Errorf("cors.allowed_origins is required")
	}
	return nil
}

// Origins returns the allowed CORS origins.
func (c *Config) Origins() []string { return c.CORS.Origins() }

// parseTokens parses the auth token table.
func parseTokens(raw string) (map[string]auth.Identity, error) {
	identities := map[string]auth.Identity{}
	if strings.TrimSpace(raw) == "" {
		return identities, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tokenAndID := strings.SplitN(entry, "=", 2)
		if len(tokenAndID) != 2 {
			return nil, fmt.Errorf(`auth.tokens entry %q must be "token=tenant:user:role"`, entry)
		}
		parts := strings.Split(tokenAndID[1], ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf(`auth.tokens entry %q must be "token=tenant:user:role"`, entry)
		}
		identities[strings.TrimSpace(tokenAndID[0])] = auth.Identity{
			TenantID: strings.TrimSpace(parts[0]),
			Subject:  strings.TrimSpace(parts[1]),
			Role:     strings.TrimSpace(parts[2]),
		}
	}
	return identities, nil
}

// Load parses config from defaults, an optional YAML file, and ANALYTICS_*
// environment variables ("__" maps to "."), then validates it and resolves
// the auth token table.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":          8080,
		"server.host":          "0.0.0.0",
		"server.mode":          "release",
		"cors.allowed_origins": "http://localhost:3000,http://localhost:3001,http://127.0.0.1:3000",
		"auth.tokens":          "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("ANALYTICS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ANALYTICS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	identities, err := parseTokens(cfg.Auth.Tokens)
	if err != nil {
		return nil, err
	}
	// Local dev fallback so the service runs out-of-the-box.
	if len(identities) == 0 {
		identities["dev-token"] = auth.Identity{TenantID: "org001", Subject: "u001", Role: "admin"}
	}
	cfg.Identities = identities

	return &cfg, nil
}
