package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("sqlagent version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Backend BackendConfig `mapstructure:"backend"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Store   StoreConfig   `mapstructure:"store"`
}

// BackendConfig describes the schema SQL agent API the client talks to.
type BackendConfig struct {
	BaseURL string            `json:"base_url" mapstructure:"base_url"`
	Timeout time.Duration     `json:"timeout" mapstructure:"timeout"`
	Headers map[string]string `json:"headers" mapstructure:"headers"`
}

// ServerConfig is the loopback server that receives the OAuth redirect.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

type OAuthConfig struct {
	Provider     string   `mapstructure:"provider"` // only google is supported by the backend today
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	// LoginURL is the backend endpoint that starts the flow when no client_id is configured.
	LoginURL      string        `mapstructure:"login_url"`
	ExchangePath  string        `mapstructure:"exchange_path"`
	VerifyIDToken bool          `mapstructure:"verify_id_token"`
	LandingRoute  string        `mapstructure:"landing_route"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

// StoreBackend selects where the session credential is persisted.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendFile   StoreBackend = "file"
	StoreBackendRedis  StoreBackend = "redis"
	StoreBackendSQLite StoreBackend = "sqlite"
)

type StoreConfig struct {
	Backend StoreBackend  `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
	Watch   bool          `mapstructure:"watch"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// InitFlags registers the global flags on fs (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file")
	fs.String("backend-url", "", "Base URL of the schema SQL agent API")
	fs.String("store-backend", "", "Credential store backend (memory|file|redis|sqlite)")
	fs.String("log-level", "", "Log level (debug|info|warn|error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	// keys without a real default are registered so AutomaticEnv reaches them on Unmarshal
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.timeout", 30*time.Second)

	v.SetDefault("oauth.provider", "google")
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.redirect_url", "")
	v.SetDefault("oauth.login_url", "")
	v.SetDefault("oauth.verify_id_token", false)
	v.SetDefault("oauth.scopes", constants.DefaultScopes)
	v.SetDefault("oauth.exchange_path", "/auth/google/callback")
	v.SetDefault("oauth.landing_route", "/")
	v.SetDefault("oauth.redirect_delay", constants.RedirectDelay)

	v.SetDefault("store.backend", string(StoreBackendFile))
	v.SetDefault("store.path", "")
	v.SetDefault("store.ttl", constants.CredentialTTL)
	v.SetDefault("store.watch", false)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.prefix", "sqlagent:")
}

// Load reads configuration from .env, config files, environment and the given flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SQLAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sqlagent")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if backendURL := v.GetString("backend-url"); backendURL != "" {
		config.Backend.BaseURL = backendURL
	}
	if storeBackend := v.GetString("store-backend"); storeBackend != "" {
		config.Store.Backend = StoreBackend(storeBackend)
	}
	if level := v.GetString("log-level"); level != "" {
		config.Logging.Level = level
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings every command depends on and fills derived values.
func (c *Config) Validate() error {
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required, please adjust the config or pass --backend-url or SQLAGENT_BACKEND_BASE_URL environment variable")
	}

	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendFile, StoreBackendRedis, StoreBackendSQLite:
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive, got %s", c.Store.TTL)
	}

	if c.OAuth.RedirectURL == "" {
		c.OAuth.RedirectURL = fmt.Sprintf("http://%s:%d%s", c.Server.Host, c.Server.Port, constants.RouteCallback)
	}
	if c.OAuth.LoginURL == "" {
		c.OAuth.LoginURL = c.Backend.BaseURL + "/auth/google/login"
	}
	return nil
}

// Addr returns the listen address of the loopback server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
