// Package config loads popis settings from defaults, an optional YAML file
// and POPIS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. POPIS_SERVER_ADDR.
const EnvPrefix = "POPIS"

// Config is the complete popis configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Reports   ReportsConfig   `mapstructure:"reports"`
}

// ServerConfig holds the HTTP listener settings. LogFile, when set, receives
// a copy of all log output.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	LogFile string `mapstructure:"log_file"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SecurityConfig covers token signing and login throttling.
type SecurityConfig struct {
	// JWTSecret signs tokens. Empty means use the secret stored in the database.
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	// LoginRateRPS and LoginRateBurst limit login attempts per client IP.
	LoginRateRPS   float64       `mapstructure:"login_rate_rps"`
	LoginRateBurst int           `mapstructure:"login_rate_burst"`
}

// BootstrapConfig names the admin account created on an empty database.
type BootstrapConfig struct {
	AdminUser string `mapstructure:"admin_user"`
}

// LedgerConfig sets the transfer policy.
type LedgerConfig struct {
	AllowInactiveTransfer bool `mapstructure:"allow_inactive_transfer"`
}

// ReportsConfig sets which items the per-type stats count.
type ReportsConfig struct {
	IncludeInactive bool `mapstructure:"include_inactive"`
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_file", "")
	v.SetDefault("database.path", "popis.sqlite3")
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.token_ttl", "24h")
	v.SetDefault("security.login_rate_rps", 0.2)
	v.SetDefault("security.login_rate_burst", 5)
	v.SetDefault("bootstrap.admin_user", "admin")
	v.SetDefault("ledger.allow_inactive_transfer", true)
	v.SetDefault("reports.include_inactive", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path, if any, into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("security.token_ttl must be positive")
	}
	if c.Security.LoginRateRPS <= 0 || c.Security.LoginRateBurst <= 0 {
		return fmt.Errorf("security.login_rate_rps and security.login_rate_burst must be positive")
	}
	return nil
}
