package model

import (
	"fmt"
	"net/url"
	"strconv"
)

// SourceConfig describes one external row source.
type SourceConfig struct {
	Name string `yaml:"name" koanf:"name" validate:"required"`
	Type string `yaml:"type" koanf:"type" validate:"required,oneof=postgres http parquet"`

	// postgres
	DSN      string `yaml:"dsn" koanf:"dsn"`
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	Database string `yaml:"database" koanf:"database"`
	Username string `yaml:"username" koanf:"username"`
	Password string `yaml:"password" koanf:"password"`
	Query    string `yaml:"query" koanf:"query"`
	Limit    int    `yaml:"limit" koanf:"limit" validate:"min=0"`

	// http
	URL            string `yaml:"url" koanf:"url"`
	APIKey         string `yaml:"api_key" koanf:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds" validate:"min=0"`

	// parquet
	Path string `yaml:"path" koanf:"path"`
}

// PostgresDSN returns DSN, or builds one from the discrete connection fields.
func (c SourceConfig) PostgresDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.Host == "" || c.Database == "" {
		return "", fmt.Errorf("source %q: dsn or host and database are required", c.Name)
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + strconv.Itoa(port),
		Path:   "/" + c.Database,
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	}
	return u.String(), nil
}
