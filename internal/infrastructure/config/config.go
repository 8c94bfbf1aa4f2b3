package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Marketplace MarketplaceConfig
	Sync        SyncConfig
	Shipping    ShippingConfig
	Printer     PrinterConfig
	Storage     StorageConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, console
	Output   string // stdout, stderr, or file path
	RingSize int    // number of recent entries kept for the logs endpoint
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// MarketplaceConfig holds the partner credentials for the marketplace
// open platform plus where the shop session token is persisted.
type MarketplaceConfig struct {
	PartnerID      int64
	PartnerKey     string
	BaseURL        string
	CallbackURL    string
	TimeoutSeconds int
	TokenFile      string
}

// Configured reports whether the partner credentials are present. When
// they are not, the server starts with the sync and shipping surfaces
// idle instead of refusing to boot.
func (m *MarketplaceConfig) Configured() bool {
	return m.PartnerID != 0 && m.PartnerKey != "" && m.BaseURL != ""
}

// SyncConfig holds the periodic order synchronization settings
type SyncConfig struct {
	Interval     time.Duration // how often a sync cycle is triggered
	LookbackDays int           // how far back the order window reaches
	PageSize     int           // order list page size
}

// ShippingConfig holds the shipping document pipeline settings
type ShippingConfig struct {
	PollAttempts int           // document readiness polls per order
	PollDelay    time.Duration // delay between readiness polls
}

// PrinterConfig holds the label printer handoff settings
type PrinterConfig struct {
	Command string // spooler binary, e.g. lp or lpr
	Name    string // printer queue name; empty uses the system default
	Enabled bool
}

// StorageConfig holds the label archive settings
type StorageConfig struct {
	Backend string // local or s3
	Local   LocalStorageConfig
	S3      S3StorageConfig
}

// LocalStorageConfig holds filesystem archive settings
type LocalStorageConfig struct {
	Dir string
}

// S3StorageConfig holds S3-compatible archive settings
type S3StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FULFILLMENT_ prefix (e.g., FULFILLMENT_MARKETPLACE_PARTNER_KEY)
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

	v.SetEnvPrefix("FULFILLMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Format:   v.GetString("log.format"),
			Output:   v.GetString("log.output"),
			RingSize: v.GetInt("log.ring_size"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Marketplace: MarketplaceConfig{
			PartnerID:      v.GetInt64("marketplace.partner_id"),
			PartnerKey:     v.GetString("marketplace.partner_key"),
			BaseURL:        v.GetString("marketplace.base_url"),
			CallbackURL:    v.GetString("marketplace.callback_url"),
			TimeoutSeconds: v.GetInt("marketplace.timeout_seconds"),
			TokenFile:      v.GetString("marketplace.token_file"),
		},
		Sync: SyncConfig{
			Interval:     v.GetDuration("sync.interval"),
			LookbackDays: v.GetInt("sync.lookback_days"),
			PageSize:     v.GetInt("sync.page_size"),
		},
		Shipping: ShippingConfig{
			PollAttempts: v.GetInt("shipping.poll_attempts"),
			PollDelay:    v.GetDuration("shipping.poll_delay"),
		},
		Printer: PrinterConfig{
			Command: v.GetString("printer.command"),
			Name:    v.GetString("printer.name"),
			Enabled: v.GetBool("printer.enabled"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			Local: LocalStorageConfig{
				Dir: v.GetString("storage.local.dir"),
			},
			S3: S3StorageConfig{
				Endpoint:  v.GetString("storage.s3.endpoint"),
				Region:    v.GetString("storage.s3.region"),
				Bucket:    v.GetString("storage.s3.bucket"),
				AccessKey: v.GetString("storage.s3.access_key"),
				SecretKey: v.GetString("storage.s3.secret_key"),
				UseSSL:    v.GetBool("storage.s3.use_ssl"),
			},
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
		cfg.App.Name = "fulfillment"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
	if cfg.Log.RingSize == 0 {
		cfg.Log.RingSize = 500
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Marketplace.TimeoutSeconds == 0 {
		cfg.Marketplace.TimeoutSeconds = 30
	}
	if cfg.Marketplace.TokenFile == "" {
		cfg.Marketplace.TokenFile = "shop_token.json"
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = time.Minute
	}
	if cfg.Sync.LookbackDays == 0 {
		cfg.Sync.LookbackDays = 15
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Shipping.PollAttempts == 0 {
		cfg.Shipping.PollAttempts = 15
	}
	if cfg.Shipping.PollDelay == 0 {
		cfg.Shipping.PollDelay = 1500 * time.Millisecond
	}
	if cfg.Printer.Command == "" {
		cfg.Printer.Command = "lp"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.Dir == "" {
		cfg.Storage.Local.Dir = "labels"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 100 {
		return fmt.Errorf("sync.page_size must be between 1 and 100, got %d", c.Sync.PageSize)
	}
	if c.Sync.LookbackDays < 1 {
		return fmt.Errorf("sync.lookback_days must be positive, got %d", c.Sync.LookbackDays)
	}
	if c.Shipping.PollAttempts < 1 {
		return fmt.Errorf("shipping.poll_attempts must be positive, got %d", c.Shipping.PollAttempts)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend must be local or s3, got %q", c.Storage.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Marketplace.Configured() && len(c.Marketplace.PartnerKey) < 16 {
			return fmt.Errorf("marketplace.partner_key looks truncated")
		}
	}

	return nil
}
