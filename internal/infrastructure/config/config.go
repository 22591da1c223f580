package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Billing  BillingConfig
	Pricing  PricingConfig
	Feed     FeedConfig
	Accounts AccountsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// BillingConfig tunes the billing loop and grace handling
type BillingConfig struct {
	// CycleSeconds is how often each contract is billed
	CycleSeconds uint64
	// Buckets spreads contracts over the cycle; the loop ticks every
	// CycleSeconds/Buckets seconds
	Buckets int
	// GraceCycles is how many unfunded cycles a contract survives
	GraceCycles uint32
	// DistributionCycles is how many settled cycles accumulate before the
	// escrow is distributed
	DistributionCycles uint32
}

// PricingConfig holds the marketplace unit prices, in accounting units per
// unit per hour
type PricingConfig struct {
	ComputePrice              uint64
	StoragePrice              uint64
	IPPrice                   uint64
	NetworkPrice              uint64
	NamePrice                 uint64
	DedicationDiscountPercent uint8
}

// FeedConfig holds the static token price feed, in milli-USD per token
type FeedConfig struct {
	Average uint32
	Min     uint32
	Max     uint32
}

// AccountsConfig holds the well-known platform account ids
type AccountsConfig struct {
	Escrow     string
	Foundation string
	Staking    string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with GRID_ prefix (e.g., GRID_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("GRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Billing: BillingConfig{
			CycleSeconds:       v.GetUint64("billing.cycle_seconds"),
			Buckets:            v.GetInt("billing.buckets"),
			GraceCycles:        uint32(v.GetUint("billing.grace_cycles")),
			DistributionCycles: uint32(v.GetUint("billing.distribution_cycles")),
		},
		Pricing: PricingConfig{
			ComputePrice:              v.GetUint64("pricing.compute_price"),
			StoragePrice:              v.GetUint64("pricing.storage_price"),
			IPPrice:                   v.GetUint64("pricing.ip_price"),
			NetworkPrice:              v.GetUint64("pricing.network_price"),
			NamePrice:                 v.GetUint64("pricing.name_price"),
			DedicationDiscountPercent: uint8(v.GetUint("pricing.dedication_discount_percent")),
		},
		Feed: FeedConfig{
			Average: uint32(v.GetUint("feed.average")),
			Min:     uint32(v.GetUint("feed.min")),
			Max:     uint32(v.GetUint("feed.max")),
		},
		Accounts: AccountsConfig{
			Escrow:     v.GetString("accounts.escrow"),
			Foundation: v.GetString("accounts.foundation"),
			Staking:    v.GetString("accounts.staking"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "gridmarket-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "gridmarket"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Billing.CycleSeconds == 0 {
		cfg.Billing.CycleSeconds = 3600
	}
	if cfg.Billing.Buckets == 0 {
		cfg.Billing.Buckets = 600
	}
	if cfg.Billing.GraceCycles == 0 {
		cfg.Billing.GraceCycles = 336 // two weeks of hourly cycles
	}
	if cfg.Billing.DistributionCycles == 0 {
		cfg.Billing.DistributionCycles = 24
	}
	if cfg.Pricing.ComputePrice == 0 {
		cfg.Pricing.ComputePrice = 600_000
	}
	if cfg.Pricing.StoragePrice == 0 {
		cfg.Pricing.StoragePrice = 300_000
	}
	if cfg.Pricing.IPPrice == 0 {
		cfg.Pricing.IPPrice = 80_000
	}
	if cfg.Pricing.NetworkPrice == 0 {
		cfg.Pricing.NetworkPrice = 50_000
	}
	if cfg.Pricing.NamePrice == 0 {
		cfg.Pricing.NamePrice = 5_000
	}
	if cfg.Pricing.DedicationDiscountPercent == 0 {
		cfg.Pricing.DedicationDiscountPercent = 50
	}
	if cfg.Feed.Average == 0 {
		cfg.Feed.Average = 500
	}
	if cfg.Feed.Min == 0 {
		cfg.Feed.Min = 100
	}
	if cfg.Feed.Max == 0 {
		cfg.Feed.Max = 1000
	}
	if cfg.Accounts.Escrow == "" {
		cfg.Accounts.Escrow = "00000000-0000-0000-0000-000000000001"
	}
	if cfg.Accounts.Foundation == "" {
		cfg.Accounts.Foundation = "00000000-0000-0000-0000-000000000002"
	}
	if cfg.Accounts.Staking == "" {
		cfg.Accounts.Staking = "00000000-0000-0000-0000-000000000003"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Billing.Buckets <= 0 {
		return fmt.Errorf("billing.buckets must be positive")
	}
	if c.Billing.CycleSeconds < uint64(c.Billing.Buckets) {
		return fmt.Errorf("billing.cycle_seconds (%d) must be at least billing.buckets (%d) so the tick interval stays positive",
			c.Billing.CycleSeconds, c.Billing.Buckets)
	}
	if c.Pricing.DedicationDiscountPercent > 100 {
		return fmt.Errorf("pricing.dedication_discount_percent cannot exceed 100")
	}
	if c.Feed.Min > c.Feed.Max {
		return fmt.Errorf("feed.min (%d) cannot exceed feed.max (%d)", c.Feed.Min, c.Feed.Max)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
