// Package config provides centralized configuration management for contactd.
// Values are layered with viper: defaults, an optional YAML file, then
// environment variables. Legacy variable names (PORT, NODE_ENV, EMAIL_USER,
// EMAIL_APP_PASSWORD) are honored alongside the prefixed ones.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// DevelopmentOrigin is the default CORS origin outside production.
const DevelopmentOrigin = "http://localhost:3000"

// SetDefaults registers default configuration values on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 100*1024)
	v.SetDefault("server.hsts", false)

	v.SetDefault("mode", ModeDevelopment)

	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.sweep_interval", "0s")

	v.SetDefault("dispatch.mode", DispatchMail)
	v.SetDefault("dispatch.timeout", "15s")
	v.SetDefault("dispatch.max_per_second", 1.0)
	v.SetDefault("dispatch.burst", 5)

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from_name", "Contact Form")
	v.SetDefault("mail.to", "")
	v.SetDefault("mail.ssl", false)
	v.SetDefault("mail.site_name", "")

	v.SetDefault("index.base_url", "http://localhost:9200")
	v.SetDefault("index.name", "contact-submissions")
	v.SetDefault("index.username", "")
	v.SetDefault("index.password", "")

	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("static.dir", "./client/dist")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// envBindings maps config keys to variable names. Each name is bound with the
// prefix; names in legacyEnv are also bound bare.
var envBindings = map[string][]string{
	"server.host":              {"HOST"},
	"server.port":              {"PORT"},
	"server.read_timeout":      {"READ_TIMEOUT"},
	"server.write_timeout":     {"WRITE_TIMEOUT"},
	"server.idle_timeout":      {"IDLE_TIMEOUT"},
	"server.shutdown_timeout":  {"SHUTDOWN_TIMEOUT"},
	"server.max_body_bytes":    {"MAX_BODY_BYTES"},
	"server.hsts":              {"HSTS"},
	"mode":                     {"MODE", "NODE_ENV"},
	"ratelimit.window":         {"RATELIMIT_WINDOW"},
	"dispatch.mode":            {"DISPATCH_MODE"},
	"dispatch.timeout":         {"DISPATCH_TIMEOUT"},
	"dispatch.max_per_second":  {"DISPATCH_MAX_PER_SECOND"},
	"dispatch.burst":           {"DISPATCH_BURST"},
	"mail.host":                {"SMTP_HOST"},
	"mail.port":                {"SMTP_PORT"},
	"mail.user":                {"MAIL_USER", "EMAIL_USER"},
	"mail.password":            {"MAIL_PASSWORD", "EMAIL_APP_PASSWORD"},
	"mail.to":                  {"MAIL_TO"},
	"mail.from_name":           {"MAIL_FROM_NAME"},
	"mail.ssl":                 {"SMTP_SSL"},
	"mail.site_name":           {"SITE_NAME"},
	"index.base_url":           {"INDEX_URL"},
	"index.name":               {"INDEX_NAME"},
	"index.username":           {"INDEX_USERNAME"},
	"index.password":           {"INDEX_PASSWORD"},
	"cors.allowed_origins":     {"CORS_ALLOWED_ORIGINS"},
	"static.dir":               {"STATIC_DIR"},
	"logging.level":            {"LOG_LEVEL"},
	"logging.format":           {"LOG_FORMAT"},
	"metrics.enabled":          {"METRICS_ENABLED"},
	"metrics.port":             {"METRICS_PORT"},
	"health.enabled":           {"HEALTH_ENABLED"},
	"ratelimit.sweep_interval": {"RATELIMIT_SWEEP_INTERVAL"},
}

// legacyEnv are also bound without the prefix.
var legacyEnv = map[string]bool{
	"PORT":               true,
	"NODE_ENV":           true,
	"EMAIL_USER":         true,
	"EMAIL_APP_PASSWORD": true,
}

// BindEnv wires environment variables into v. Prefixed names take precedence
// over legacy ones.
func BindEnv(v *viper.Viper, prefix string) error {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, names := range envBindings {
		input := []string{key}
		for _, name := range names {
			input = append(input, prefix+name)
		}
		for _, name := range names {
			if legacyEnv[name] {
				input = append(input, name)
			}
		}
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes v into a Config, normalizes it and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Normalize trims values, strips quotes from secrets and applies mode
// dependent defaults.
func (c *Config) Normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}
	c.Dispatch.Mode = strings.ToLower(strings.TrimSpace(c.Dispatch.Mode))

	c.Mail.User = strings.TrimSpace(c.Mail.User)
	c.Mail.To = strings.TrimSpace(c.Mail.To)
	// app passwords are often pasted with surrounding quotes
	c.Mail.Password = strings.ReplaceAll(c.Mail.Password, `"`, "")

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	c.Index.BaseURL = strings.TrimRight(strings.TrimSpace(c.Index.BaseURL), "/")

	origins := make([]string, 0, len(c.CORS.AllowedOrigins))
	for _, origin := range c.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 && !c.IsProduction() {
		origins = []string{DevelopmentOrigin}
	}
	c.CORS.AllowedOrigins = origins

	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 100 * 1024
	}
	if c.Dispatch.Timeout <= 0 {
		c.Dispatch.Timeout = 15 * time.Second
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	case "test", "staging":
		// treated like development
	default:
		problems = append(problems, fmt.Sprintf("mode %q is not one of development, production", c.Mode))
	}

	if c.IsProduction() && len(c.CORS.AllowedOrigins) == 0 {
		problems = append(problems, "cors.allowed_origins must list the site origins in production mode")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "ratelimit.window must be positive")
	}
	if c.RateLimit.SweepInterval < 0 {
		problems = append(problems, "ratelimit.sweep_interval must not be negative")
	}
	if c.Dispatch.MaxPerSecond < 0 || c.Dispatch.Burst < 0 {
		problems = append(problems, "dispatch.max_per_second and dispatch.burst must not be negative")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of json, console", c.Logging.Format))
	}

	switch c.Dispatch.Mode {
	case DispatchMail:
		if c.Mail.Host == "" || c.Mail.Port <= 0 {
			problems = append(problems, "mail.host and mail.port are required in mail mode")
		}
		if c.Mail.User == "" || c.Mail.Password == "" {
			problems = append(problems, "mail.user and mail.password (EMAIL_USER, EMAIL_APP_PASSWORD) are required in mail mode")
		}
		if c.Mail.To == "" {
			problems = append(problems, "mail.to is required in mail mode")
		}
	case DispatchIndex:
		if c.Index.BaseURL == "" || c.Index.Name == "" {
			problems = append(problems, "index.base_url and index.name are required in index mode")
		} else if u, err := url.Parse(c.Index.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("index.base_url %q is not an absolute URL", c.Index.BaseURL))
		}
	default:
		problems = append(problems, fmt.Sprintf("dispatch.mode %q is not one of mail, index", c.Dispatch.Mode))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir(configName string) string {
	return gfconfig.GetAppConfigDir(configName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath(configName string) string {
	configDir := DefaultConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
