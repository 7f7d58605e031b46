package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Billing  BillingConfig  `mapstructure:"billing"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`
}

type SecurityConfig struct {
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

// OpenAIConfig configures the chat-completion upstream
type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	DefaultModel string        `mapstructure:"default_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	// APIBase overrides the Stripe API host, used against local stubs
	APIBase string `mapstructure:"api_base"`
}

// SupabaseConfig configures the auth provider and the customer-link store.
// AnonKey is only ever used for token verification, ServiceRoleKey only for
// the privileged customer lookup.
type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	AnonKey        string        `mapstructure:"anon_key"`
	ServiceRoleKey string        `mapstructure:"service_role_key"`
	CustomersTable string        `mapstructure:"customers_table"`
	DatabaseDSN    string        `mapstructure:"database_dsn"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type BillingConfig struct {
	DefaultOrigin string `mapstructure:"default_origin"`
	ReturnPath    string `mapstructure:"return_path"`
}

// env variable names for values that are normally injected by the hosting platform
var envBindings = map[string]string{
	"openai.api_key":            "OPENAI_API_KEY",
	"openai.base_url":           "OPENAI_BASE_URL",
	"stripe.secret_key":         "STRIPE_SECRET_KEY",
	"supabase.url":              "SUPABASE_URL",
	"supabase.anon_key":         "SUPABASE_ANON_KEY",
	"supabase.service_role_key": "SUPABASE_SERVICE_ROLE_KEY",
	"supabase.database_dsn":     "SUPABASE_DB_DSN",
	"server.port":               "PORT",
}

// BindEnv registers the environment variable names on v
func BindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

// Load loads the configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads the configuration from v, applying defaults and validating server settings.
// Missing upstream credentials are not an error here; see ChatConfig and PortalConfig.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ChatConfig is the slice of configuration the chat proxy needs
type ChatConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Chat returns the chat proxy configuration
func (c *Config) Chat() ChatConfig {
	return ChatConfig{
		APIKey:       c.OpenAI.APIKey,
		BaseURL:      c.OpenAI.BaseURL,
		DefaultModel: c.OpenAI.DefaultModel,
		Timeout:      c.OpenAI.Timeout,
	}
}

// Validate reports a Configuration error when the upstream credential is absent
func (c ChatConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errs.New(errs.Configuration, "OPENAI_API_KEY is not configured")
	}
	return nil
}

// PortalConfig is the slice of configuration the billing portal proxy needs
type PortalConfig struct {
	StripeSecretKey string
	StripeAPIBase   string
	SupabaseURL     string
	AnonKey         string
	ServiceRoleKey  string
	CustomersTable  string
	DatabaseDSN     string
	Timeout         time.Duration
	DefaultOrigin   string
	ReturnPath      string
}

// Portal returns the billing portal proxy configuration
func (c *Config) Portal() PortalConfig {
	return PortalConfig{
		StripeSecretKey: c.Stripe.SecretKey,
		StripeAPIBase:   c.Stripe.APIBase,
		SupabaseURL:     c.Supabase.URL,
		AnonKey:         c.Supabase.AnonKey,
		ServiceRoleKey:  c.Supabase.ServiceRoleKey,
		CustomersTable:  c.Supabase.CustomersTable,
		DatabaseDSN:     c.Supabase.DatabaseDSN,
		Timeout:         c.Supabase.Timeout,
		DefaultOrigin:   c.Billing.DefaultOrigin,
		ReturnPath:      c.Billing.ReturnPath,
	}
}

// Missing lists the names of required values that are not set
func (c PortalConfig) Missing() []string {
	var missing []string
	required := []struct {
		name, value string
	}{
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_ANON_KEY", c.AnonKey},
		{"SUPABASE_SERVICE_ROLE_KEY", c.ServiceRoleKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// Validate reports a Configuration error when any required value is absent
func (c PortalConfig) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return errs.Wrap(errs.Configuration, "Server is missing billing configuration",
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8888
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90 * time.Second
	}
	if cfg.Server.MaxRequestSize == 0 {
		cfg.Server.MaxRequestSize = 1 << 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/projectdesk.log"
	}
	// Console output enabled by default
	cfg.Logging.ConsoleOutput = true
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	cfg.OpenAI.BaseURL = strings.TrimRight(cfg.OpenAI.BaseURL, "/")
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = 60 * time.Second
	}

	cfg.Supabase.URL = strings.TrimRight(cfg.Supabase.URL, "/")
	if cfg.Supabase.CustomersTable == "" {
		cfg.Supabase.CustomersTable = "profiles"
	}
	if cfg.Supabase.Timeout == 0 {
		cfg.Supabase.Timeout = 15 * time.Second
	}

	if cfg.Billing.DefaultOrigin == "" {
		cfg.Billing.DefaultOrigin = "http://localhost:8888"
	}
	if cfg.Billing.ReturnPath == "" {
		cfg.Billing.ReturnPath = "/billing"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	switch cfg.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode: %s", cfg.Server.Mode)
	}
	if !strings.HasPrefix(cfg.Billing.ReturnPath, "/") {
		return fmt.Errorf("billing return path must start with '/': %s", cfg.Billing.ReturnPath)
	}
	return nil
}
