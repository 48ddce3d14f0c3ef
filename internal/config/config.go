package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application. It is loaded once at
// startup and passed to each component; nothing reads the environment later.
type Config struct {
	APITitle      string `mapstructure:"api_title"`
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr        string   `mapstructure:"addr"`
		CORSOrigins []string `mapstructure:"cors_origins"`
		RateLimit   float64  `mapstructure:"rate_limit"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Backend struct {
		Driver string   `mapstructure:"driver"`
		Seed   []string `mapstructure:"seed"`
	} `mapstructure:"backend"`
	Dropbox struct {
		AppKey       string        `mapstructure:"app_key"`
		AppSecret    string        `mapstructure:"app_secret"`
		RefreshToken string        `mapstructure:"refresh_token"`
		APIURL       string        `mapstructure:"api_url"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"dropbox"`
	Folders struct {
		Pending                string `mapstructure:"pending"`
		Approved               string `mapstructure:"approved"`
		Deleted                string `mapstructure:"deleted"`
		Rework                 string `mapstructure:"rework"`
		DisambiguateCollisions bool   `mapstructure:"disambiguate_collisions"`
	} `mapstructure:"folders"`
	Auth struct {
		Issuer          string `mapstructure:"issuer"`
		Audience        string `mapstructure:"audience"`
		AuthorizedParty string `mapstructure:"authorized_party"`
		JWKSURL         string `mapstructure:"jwks_url"`
	} `mapstructure:"auth"`
	Mail struct {
		Enabled  bool          `mapstructure:"enabled"`
		Host     string        `mapstructure:"host"`
		Port     int           `mapstructure:"port"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		From     string        `mapstructure:"from"`
		To       []string      `mapstructure:"to"`
		Subject  string        `mapstructure:"subject"`
		Cooldown time.Duration `mapstructure:"cooldown"`
		Retries  int           `mapstructure:"retries"`
	} `mapstructure:"mail"`
	Reservation struct {
		Enabled   bool          `mapstructure:"enabled"`
		TTL       time.Duration `mapstructure:"ttl"`
		RedisAddr string        `mapstructure:"redis_addr"`
	} `mapstructure:"reservation"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// defaults also registers every key so environment overrides are picked up
// by Unmarshal.
var defaults = map[string]any{
	"api_title":                       "TanjaX API",
	"environment":                     "PROD",
	"dev_mode_bypass":                 false,
	"server.addr":                     "",
	"server.cors_origins":             []string{"*"},
	"server.rate_limit":               20,
	"log.level":                       "info",
	"log.format":                      "text",
	"backend.driver":                  "dropbox",
	"backend.seed":                    []string{},
	"dropbox.app_key":                 "",
	"dropbox.app_secret":              "",
	"dropbox.refresh_token":           "",
	"dropbox.api_url":                 "https://api.dropboxapi.com",
	"dropbox.timeout":                 "5s",
	"folders.pending":                 "",
	"folders.approved":                "",
	"folders.deleted":                 "",
	"folders.rework":                  "",
	"folders.disambiguate_collisions": false,
	"auth.issuer":                     "",
	"auth.audience":                   "",
	"auth.authorized_party":           "",
	"auth.jwks_url":                   "",
	"mail.enabled":                    false,
	"mail.host":                       "",
	"mail.port":                       587,
	"mail.username":                   "",
	"mail.password":                   "",
	"mail.from":                       "",
	"mail.to":                         []string{},
	"mail.subject":                    "Review queue is empty",
	"mail.cooldown":                   "1h",
	"mail.retries":                    2,
	"reservation.enabled":             false,
	"reservation.ttl":                 "5m",
	"reservation.redis_addr":          "",
	"metrics.enabled":                 true,
	"tls.enable":                      false,
	"tls.cert_file":                   "",
	"tls.key_file":                    "",
	"tls.hostnames":                   []string{},
}

// LoadConfig loads the configuration from a file and the environment. With an
// empty path, config.yaml is searched in . and ./config and may be absent.
// Environment variables override file values; their names are the upper-cased
// keys with dots replaced by underscores (DROPBOX_REFRESH_TOKEN).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// the issuer is compared byte for byte against discovery and token claims
	config.Auth.Issuer = strings.TrimSpace(config.Auth.Issuer)
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
		if config.TLS.Enable {
			config.Server.Addr = ":8443"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

// AuthBypassed reports whether bearer verification is skipped.
func (c *Config) AuthBypassed() bool {
	return c.IsDev() && c.DevModeBypass
}

// Validate reports every configuration problem at once. Folder distinctness
// is checked where the folder mapping is built.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend.Driver {
	case "dropbox":
		if c.Dropbox.AppKey == "" || c.Dropbox.RefreshToken == "" {
			errs = append(errs, errors.New("dropbox.app_key and dropbox.refresh_token are required"))
		}
		if c.Dropbox.Timeout <= 0 {
			errs = append(errs, errors.New("dropbox.timeout must be positive"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("backend.driver must be dropbox or memory, got %q", c.Backend.Driver))
	}

	for _, f := range []struct{ key, dir string }{
		{"folders.pending", c.Folders.Pending},
		{"folders.approved", c.Folders.Approved},
		{"folders.deleted", c.Folders.Deleted},
		{"folders.rework", c.Folders.Rework},
	} {
		if f.dir == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.key))
		}
	}

	if !c.AuthBypassed() && (c.Auth.Issuer == "" || c.Auth.Audience == "" || c.Auth.AuthorizedParty == "") {
		errs = append(errs, errors.New("auth.issuer, auth.audience and auth.authorized_party are required"))
	}

	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "" || len(c.Mail.To) == 0) {
		errs = append(errs, errors.New("mail.host, mail.from and mail.to are required when mail is enabled"))
	}

	if c.Reservation.Enabled && c.Reservation.TTL <= 0 {
		errs = append(errs, errors.New("reservation.ttl must be positive"))
	}

	if c.TLS.Enable && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file are required when tls is enabled"))
	}

	return errors.Join(errs...)
}
