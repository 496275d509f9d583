package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Invoicing InvoicingConfig
	Renderer  RendererConfig
	Render    RenderConfig
	Storage   StorageConfig
	Branding  BrandingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsDevelopment reports whether the app runs in a local development environment
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "" || a.Env == "development" || a.Env == "local"
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

// RedisConfig holds Redis connection settings.
// When disabled, token revocation falls back to an in-process blacklist.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                 string
	RefreshSecret          string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	LoginRateLimit   int // sign-in attempts per client and window
	LoginRateWindow  time.Duration
}

// InvoicingConfig holds the retry policy of the invoice save protocol.
// Waits grow linearly: step * attempt.
type InvoicingConfig struct {
	VerifyAttempts int
	VerifyStep     time.Duration
	InsertAttempts int
	InsertStep     time.Duration
}

// RendererConfig describes how the API reaches the rendering service
type RendererConfig struct {
	DevEndpoint   string // used when app.env is development
	Endpoint      string // used everywhere else
	Timeout       time.Duration
	AssetTimeout  time.Duration // per image / stylesheet fetch during capture
	MaxAssetBytes int64
	AssetBaseURL  string // base URL that relative asset references resolve against

	// AssetHosts are the hosts, besides the AssetBaseURL host, that capture may fetch from
	AssetHosts []string
	// AllowPrivateAssets lets capture reach loopback, private and link-local addresses
	AllowPrivateAssets bool
}

// EndpointFor returns the rendering service URL for the given app settings
func (r RendererConfig) EndpointFor(app AppConfig) string {
	if app.IsDevelopment() && r.DevEndpoint != "" {
		return r.DevEndpoint
	}
	return r.Endpoint
}

// RenderConfig holds the settings of the rendering service process
type RenderConfig struct {
	Port           string
	ChromePath     string
	NoSandbox      bool
	LoadTimeout    time.Duration
	ImageTimeout   time.Duration
	ViewportWidth  int
	ViewportHeight int
	Base64Response bool
}

// StorageConfig holds S3-compatible archive settings for generated PDFs
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// BrandingConfig holds presentation settings of the invoice layout
type BrandingConfig struct {
	CurrencySymbol string
	LogoURL        string
	FooterText     string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICE_ prefix (e.g., INVOICE_DATABASE_PASSWORD)
// 2. A .env file in the working directory (loaded into the environment, never overriding it)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRender loads the configuration of the rendering service, which needs
// neither the database nor the JWT secret
func LoadRender() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.Render.LoadTimeout < 0 || cfg.Render.ImageTimeout < 0 {
		return nil, fmt.Errorf("render.load_timeout and render.image_timeout cannot be negative")
	}
	return cfg, nil
}

func read() (*Config, error) {
	// A missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("INVOICE")
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
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("jwt.secret"),
			RefreshSecret:          v.GetString("jwt.refresh_secret"),
			AccessTokenExpiration:  v.GetDuration("jwt.access_token_expiration"),
			RefreshTokenExpiration: v.GetDuration("jwt.refresh_token_expiration"),
			Issuer:                 v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			LoginRateLimit:   v.GetInt("http.login_rate_limit"),
			LoginRateWindow:  v.GetDuration("http.login_rate_window"),
		},
		Invoicing: InvoicingConfig{
			VerifyAttempts: v.GetInt("invoicing.verify_attempts"),
			VerifyStep:     v.GetDuration("invoicing.verify_step"),
			InsertAttempts: v.GetInt("invoicing.insert_attempts"),
			InsertStep:     v.GetDuration("invoicing.insert_step"),
		},
		Renderer: RendererConfig{
			DevEndpoint:   v.GetString("renderer.dev_endpoint"),
			Endpoint:      v.GetString("renderer.endpoint"),
			Timeout:       v.GetDuration("renderer.timeout"),
			AssetTimeout:  v.GetDuration("renderer.asset_timeout"),
			MaxAssetBytes: v.GetInt64("renderer.max_asset_bytes"),
			AssetBaseURL:  v.GetString("renderer.asset_base_url"),
			AssetHosts:    v.GetStringSlice("renderer.asset_hosts"),

			AllowPrivateAssets: v.GetBool("renderer.allow_private_assets"),
		},
		Render: RenderConfig{
			Port:           v.GetString("render.port"),
			ChromePath:     v.GetString("render.chrome_path"),
			NoSandbox:      v.GetBool("render.no_sandbox"),
			LoadTimeout:    v.GetDuration("render.load_timeout"),
			ImageTimeout:   v.GetDuration("render.image_timeout"),
			ViewportWidth:  v.GetInt("render.viewport_width"),
			ViewportHeight: v.GetInt("render.viewport_height"),
			Base64Response: v.GetBool("render.base64_response"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Prefix:          v.GetString("storage.prefix"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Branding: BrandingConfig{
			CurrencySymbol: v.GetString("branding.currency_symbol"),
			LogoURL:        v.GetString("branding.logo_url"),
			FooterText:     v.GetString("branding.footer_text"),
		},
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoice-backend"
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
		cfg.Database.DBName = "invoices"
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
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = time.Hour
	}
	if cfg.JWT.RefreshTokenExpiration == 0 {
		cfg.JWT.RefreshTokenExpiration = 168 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "invoice-backend"
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
	// PDF export waits on the rendering service, which may take up to its 30s load timeout
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 && cfg.App.IsDevelopment() {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if cfg.HTTP.LoginRateLimit == 0 {
		cfg.HTTP.LoginRateLimit = 10
	}
	if cfg.HTTP.LoginRateWindow == 0 {
		cfg.HTTP.LoginRateWindow = time.Minute
	}
	if cfg.Invoicing.VerifyAttempts == 0 {
		cfg.Invoicing.VerifyAttempts = 5
	}
	if cfg.Invoicing.VerifyStep == 0 {
		cfg.Invoicing.VerifyStep = 100 * time.Millisecond
	}
	if cfg.Invoicing.InsertAttempts == 0 {
		cfg.Invoicing.InsertAttempts = 3
	}
	if cfg.Invoicing.InsertStep == 0 {
		cfg.Invoicing.InsertStep = 200 * time.Millisecond
	}
	if cfg.Renderer.DevEndpoint == "" {
		cfg.Renderer.DevEndpoint = "http://localhost:3001/api/generate-pdf"
	}
	if cfg.Renderer.Endpoint == "" {
		cfg.Renderer.Endpoint = "http://renderer:3001/api/generate-pdf"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 45 * time.Second
	}
	if cfg.Renderer.AssetTimeout == 0 {
		cfg.Renderer.AssetTimeout = 10 * time.Second
	}
	if cfg.Renderer.MaxAssetBytes == 0 {
		cfg.Renderer.MaxAssetBytes = 5 << 20 // 5MB
	}
	if cfg.Render.Port == "" {
		cfg.Render.Port = "3001"
	}
	if cfg.Render.LoadTimeout == 0 {
		cfg.Render.LoadTimeout = 30 * time.Second
	}
	if cfg.Render.ImageTimeout == 0 {
		cfg.Render.ImageTimeout = 5 * time.Second
	}
	if cfg.Render.ViewportWidth == 0 {
		cfg.Render.ViewportWidth = 1200
	}
	if cfg.Render.ViewportHeight == 0 {
		cfg.Render.ViewportHeight = 1600
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "invoices"
	}
	if cfg.Branding.CurrencySymbol == "" {
		cfg.Branding.CurrencySymbol = "৳"
	}
	if cfg.Branding.FooterText == "" {
		cfg.Branding.FooterText = "Thank you for your business!"
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
	if c.Invoicing.VerifyAttempts < 1 || c.Invoicing.InsertAttempts < 1 {
		return fmt.Errorf("invoicing.verify_attempts and invoicing.insert_attempts must be at least 1")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.enabled is true")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Renderer.AllowPrivateAssets {
			return fmt.Errorf("renderer.allow_private_assets cannot be enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
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
