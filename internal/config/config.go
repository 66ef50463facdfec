package config

import (
	"time"
)

// Run modes. Production enables static hosting and strict CORS.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Dispatch modes select the downstream collaborator.
const (
	DispatchMail  = "mail"
	DispatchIndex = "index"
)

// Config represents the complete application configuration. Values are
// layered: defaults, then the config file, then environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Mode      string          `mapstructure:"mode" yaml:"mode"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch" yaml:"dispatch"`
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	CORS      CORSConfig      `mapstructure:"cors" yaml:"cors"`
	Static    StaticConfig    `mapstructure:"static" yaml:"static"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Health    HealthConfig    `mapstructure:"health" yaml:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxBodyBytes bounds the size of a contact submission body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// HSTS adds Strict-Transport-Security; enable only behind TLS.
	HSTS bool `mapstructure:"hsts" yaml:"hsts"`
}

// RateLimitConfig controls per-client submission spacing.
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window"`
	// SweepInterval enables a background janitor; zero keeps the inline sweep only.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// DispatchConfig selects and bounds the downstream dispatcher.
type DispatchConfig struct {
	Mode         string        `mapstructure:"mode" yaml:"mode"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxPerSecond float64       `mapstructure:"max_per_second" yaml:"max_per_second"`
	Burst        int           `mapstructure:"burst" yaml:"burst"`
}

// MailConfig configures the SMTP relay.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	FromName string `mapstructure:"from_name" yaml:"from_name"`
	To       string `mapstructure:"to" yaml:"to"`
	// SSL uses implicit TLS (port 465); otherwise STARTTLS is negotiated.
	SSL bool `mapstructure:"ssl" yaml:"ssl"`
	// SiteName appears in the message footer.
	SiteName string `mapstructure:"site_name" yaml:"site_name"`
}

// IndexConfig configures the search/index backend.
type IndexConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Name     string `mapstructure:"name" yaml:"name"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// StaticConfig points at the built single-page app served in production.
type StaticConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format is json for log shippers or console for local reading.
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" yaml:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether the /health probe endpoints are exposed
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c != nil && c.Mode == ModeProduction
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Mail.Password = mask(out.Mail.Password)
	out.Index.Password = mask(out.Index.Password)
	out.CORS.AllowedOrigins = append([]string(nil), c.CORS.AllowedOrigins...)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
