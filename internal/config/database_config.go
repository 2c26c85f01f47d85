package config

import (
	"fmt"
	"net/url"
)

// DatabaseConfig describes the PostgreSQL instance snapshots are exported to.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"  env:"TFS_DB_ENABLED"`
	Host     string `yaml:"host"     env:"TFS_DB_HOST"     env-default:"localhost"`
	Port     int    `yaml:"port"     env:"TFS_DB_PORT"     env-default:"5432"`
	User     string `yaml:"user"     env:"TFS_DB_USER"     env-default:"postgres"`
	Password string `yaml:"password" env:"TFS_DB_PASSWORD"`
	Name     string `yaml:"name"     env:"TFS_DB_NAME"     env-default:"tinyfs"`
	SSLMode  string `yaml:"sslmode"  env:"TFS_DB_SSLMODE"  env-default:"disable"`
	Schema   string `yaml:"schema"   env:"TFS_DB_SCHEMA"   env-default:"tinyfs"`
}

func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}
