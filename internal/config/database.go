package config

import (
	"fmt"
	"strings"
)

// Database holds the Postgres connection parameters shared by the lobby
// and world databases (spec §6 "database_type ... and per-type connection
// configs"). The original source recognizes sqlite3 and mariadb; this core
// backs database_type with the pgx/Postgres driver only, since that is the
// only database dependency carried into this stack: Validate accepts an
// empty value or "postgres" and loading errors out on any other value
// rather than guess at a second driver.
type Database struct {
	Type string `yaml:"database_type"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns          int32  `yaml:"max_conns"`
	MinConns          int32  `yaml:"min_conns"`
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`
	HealthCheckPeriod string `yaml:"health_check_period"`
}

// DSN returns the pgx connection string for this database.
func (d Database) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}
	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// Validate rejects a database_type this core cannot back.
func (d Database) Validate() error {
	if d.Type != "" && d.Type != "postgres" {
		return fmt.Errorf("unsupported database_type %q: this core only backs postgres", d.Type)
	}
	return nil
}

func defaultDatabase(dbname string) Database {
	return Database{
		Type:    "postgres",
		Host:    "127.0.0.1",
		Port:    5432,
		User:    "nexus",
		Password: "nexus",
		DBName:  dbname,
		SSLMode: "disable",
	}
}
