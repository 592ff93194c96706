package dbcheck

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrEmptyDocument = errors.New("credentials document is empty")

// Credentials are the connection settings found in an uploaded credentials
// document. URL wins over the individual fields when both are present.
type Credentials struct {
	URL      string `json:"url" yaml:"url"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	Path     string `json:"path" yaml:"path"`
}

func (c *Credentials) normalize() {
	if c.User == "" {
		c.User = c.Username
	}

	if c.Database == "" {
		c.Database = c.DBName
	}
}

var envKeys = map[string]func(c *Credentials, v string) error{
	"DATABASE_URL": func(c *Credentials, v string) error { c.URL = v; return nil },
	"DB_URL":       func(c *Credentials, v string) error { c.URL = v; return nil },
	"DB_HOST":      func(c *Credentials, v string) error { c.Host = v; return nil },
	"DB_USER":      func(c *Credentials, v string) error { c.User = v; return nil },
	"DB_PASSWORD":  func(c *Credentials, v string) error { c.Password = v; return nil },
	"DB_NAME":      func(c *Credentials, v string) error { c.Database = v; return nil },
	"DB_SSLMODE":   func(c *Credentials, v string) error { c.SSLMode = v; return nil },
	"DB_PATH":      func(c *Credentials, v string) error { c.Path = v; return nil },
	"DB_PORT": func(c *Credentials, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing DB_PORT %q", v)
		}

		c.Port = port

		return nil
	},
}

// ParseCredentials reads a JSON, YAML or dotenv credentials document.
func ParseCredentials(doc []byte) (*Credentials, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	creds := &Credentials{}

	switch {
	case doc[0] == '{':
		if err := json.Unmarshal(doc, creds); err != nil {
			return nil, errors.Wrap(err, "parsing json credentials")
		}
	case looksLikeDotenv(doc):
		env, err := godotenv.UnmarshalBytes(doc)
		if err != nil {
			return nil, errors.Wrap(err, "parsing dotenv credentials")
		}

		for k, v := range env {
			set, ok := envKeys[strings.ToUpper(k)]
			if !ok {
				continue
			}

			if err := set(creds, v); err != nil {
				return nil, err
			}
		}
	default:
		if err := yaml.Unmarshal(doc, creds); err != nil {
			return nil, errors.Wrap(err, "parsing yaml credentials")
		}
	}

	creds.normalize()

	return creds, nil
}

func looksLikeDotenv(doc []byte) bool {
	for _, line := range strings.Split(string(doc), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.Index(line, "=")
		colon := strings.Index(line, ":")

		return eq > 0 && (colon < 0 || eq < colon)
	}

	return false
}
