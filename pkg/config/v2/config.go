package config

import (
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	RemoteAPI       RemoteAPI       `yaml:"remote_api"`
	Server          Server          `yaml:"server"`
	Postgres        Postgres        `yaml:"postgres"`
	Cookies         Cookies         `yaml:"cookies"`
	Verification    Verification    `yaml:"verification"`
	CredentialCheck CredentialCheck `yaml:"credential_check"`
	Slack           Slack           `yaml:"slack"`

	LogLevel                       string `yaml:"log_level"`
	CacheDurationSeconds           int    `yaml:"cache_duration_seconds"`
	SessionCleanupFrequencySeconds int    `yaml:"session_cleanup_frequency_seconds"`
	MaxQueuedToasts                int    `yaml:"max_queued_toasts"`
	Debug                          bool   `yaml:"debug"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RemoteAPI, validation.Required),
		validation.Field(&c.Server, validation.Required),
		validation.Field(&c.Postgres, validation.Required),
		validation.Field(&c.Cookies, validation.Required),
		validation.Field(&c.Verification),
		validation.Field(&c.CredentialCheck),
		validation.Field(&c.Slack),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.CacheDurationSeconds, validation.Required),
		validation.Field(&c.SessionCleanupFrequencySeconds, validation.Required),
		validation.Field(&c.MaxQueuedToasts, validation.Min(0)),
	)
}

// RemoteAPI is the schema conversion service the portal fronts.
type RemoteAPI struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (r RemoteAPI) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Required, is.URL),
		validation.Field(&r.TimeoutSeconds, validation.Required, validation.Min(1)),
	)
}

func (r RemoteAPI) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type Verification struct {
	SaveBeforeVerify bool `yaml:"save_before_verify"`
	IdleTTLMinutes   int  `yaml:"idle_ttl_minutes"`
}

func (v Verification) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.IdleTTLMinutes, validation.Min(0)),
	)
}

func (v Verification) IdleTTL() time.Duration {
	return time.Duration(v.IdleTTLMinutes) * time.Minute
}

type CredentialCheck struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

func (p CredentialCheck) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.TimeoutSeconds, validation.When(p.Enabled, validation.Required, validation.Min(1))),
	)
}

type Slack struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

func (s Slack) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.WebhookURL, is.URL),
		validation.Field(&s.Channel, validation.When(s.WebhookURL != "", validation.Required)),
	)
}

type Postgres struct {
	UserName      string                `yaml:"user_name"`
	Password      string                `yaml:"password"`
	Host          string                `yaml:"host"`
	Port          string                `yaml:"port"`
	DatabaseName  string                `yaml:"database_name"`
	SSLMode       string                `yaml:"ssl_mode"`
	Configuration PostgresConfiguration `yaml:"configuration"`
}

func (p Postgres) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.UserName, validation.Required),
		validation.Field(&p.Password, validation.Required),
		validation.Field(&p.Host, validation.Required, is.Host),
		validation.Field(&p.Port, validation.Required, is.Port),
		validation.Field(&p.DatabaseName, validation.Required),
		validation.Field(&p.SSLMode, validation.Required, validation.In("disable", "allow", "prefer", "require")),
	)
}

func (p Postgres) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s?sslmode=%s",
		p.UserName,
		p.Password,
		net.JoinHostPort(p.Host, p.Port),
		p.DatabaseName,
		p.SSLMode,
	)
}

type PostgresConfiguration struct {
	MaxIdleConnections int `yaml:"max_idle_connections"`
	MaxOpenConnections int `yaml:"max_open_connections"`
}

type Server struct {
	Hostname string `yaml:"hostname"`
	Address  string `yaml:"address"`
	Port     string `yaml:"port"`
	// AllowedOrigins are the front end origins allowed to call the API with
	// credentials. Empty allows any http(s) origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required, is.Host),
		validation.Field(&s.Hostname, validation.Required, is.Host),
		validation.Field(&s.Port, validation.Required, is.Port),
		validation.Field(&s.AllowedOrigins, validation.Each(validation.Required, is.URL)),
	)
}

type Cookies struct {
	Session CookieSettings `yaml:"session"`
}

func (c Cookies) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Session, validation.Required),
	)
}

type CookieSettings struct {
	Name     string `yaml:"name"`
	MaxAge   int    `yaml:"max_age"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	SameSite string `yaml:"same_site"`
	Secure   bool   `yaml:"secure"`
	HttpOnly bool   `yaml:"http_only"`
}

func (c CookieSettings) GetSameSite() http.SameSite {
	switch c.SameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "Lax":
		return http.SameSiteLaxMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

func (c CookieSettings) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.MaxAge, validation.Required),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Domain, validation.Required),
		// Valid SameSite values:
		// - https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Set-Cookie#samesitesamesite-value
		validation.Field(&c.SameSite, validation.Required, validation.In("Strict", "Lax", "None")),
	)
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	path := filepath.Dir(absolutePath)
	extension := filepath.Ext(fileName)

	if strings.ReplaceAll(strings.ToLower(extension), ".", "") != defaultExtension {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     path,
	}, nil
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType(defaultExtension)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if b != nil {
		err := b.Bind(v)
		if err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)

	err := v.ReadInConfig()
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var config Config

	err = v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		err := v.BindEnv(key, envVar)
		if err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}

	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"DATABASE_PASSWORD": "postgres.password",
		"DATABASE_HOST":     "postgres.host",
		"SLACK_WEBHOOK_URL": "slack.webhook_url",
		"REMOTE_API_URL":    "remote_api.url",
	})
}
