// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Auth     AuthConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host         string
	Port         int
	BaseURL      string
	ClientOrigin string // origin used in verification links sent by email
	MaxBodySize  int    // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	From     string
	FromName string
	Username string
	Password string
	TLS      bool
}

// AuthConfig carries the per-channel token secrets and lifetimes. Email,
// session and refresh tokens are signed with different secrets so a token
// minted for one channel can never verify on another.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	EmailTokenSecret string
	EmailTokenExpiry time.Duration
	SessionSecret    string
	SessionExpiry    time.Duration
	RefreshSecret    string
	RefreshExpiry    time.Duration
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         cmd.String("host"),
			Port:         int(cmd.Int("port")),
			BaseURL:      cmd.String("base-url"),
			ClientOrigin: cmd.String("client-origin"),
			MaxBodySize:  int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Auth: AuthConfig{
			EmailTokenSecret: cmd.String("email-token-secret"),
			EmailTokenExpiry: time.Duration(cmd.Int("email-token-expiry")) * time.Minute,
			SessionSecret:    cmd.String("session-secret"),
			SessionExpiry:    time.Duration(cmd.Int("session-expiry")) * time.Minute,
			RefreshSecret:    cmd.String("refresh-secret"),
			RefreshExpiry:    time.Duration(cmd.Int("refresh-expiry")) * time.Minute,
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Server.ClientOrigin == "" {
		cfg.Server.ClientOrigin = cfg.Server.BaseURL
	}

	return cfg
}

// Validate checks that the secrets required for token signing are present.
func (c *Config) Validate() error {
	if c.Auth.EmailTokenSecret == "" {
		return fmt.Errorf("email token secret is required")
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("refresh secret is required")
	}
	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "client-origin",
			Usage:   "Origin used for verification links in emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLIENT_ORIGIN"), toml.TOML("server.client_origin", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/authkit.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "From address for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Friendly sender name for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP auth username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP auth password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP connections",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "email-token-secret",
			Usage:   "Secret for signing email verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_TOKEN_SECRET"), toml.TOML("auth.email_token_secret", configFile)),
		},
		&cli.IntFlag{
			Name:    "email-token-expiry",
			Value:   15,
			Usage:   "Email verification token lifetime in minutes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_TOKEN_EXPIRY"), toml.TOML("auth.email_token_expiry", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-secret",
			Usage:   "Secret for signing session tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_SECRET"), toml.TOML("auth.session_secret", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-expiry",
			Value:   15,
			Usage:   "Session token lifetime in minutes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_EXPIRY"), toml.TOML("auth.session_expiry", configFile)),
		},
		&cli.StringFlag{
			Name:    "refresh-secret",
			Usage:   "Secret for signing refresh tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_SECRET"), toml.TOML("auth.refresh_secret", configFile)),
		},
		&cli.IntFlag{
			Name:    "refresh-expiry",
			Value:   10080,
			Usage:   "Refresh token lifetime in minutes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_EXPIRY"), toml.TOML("auth.refresh_expiry", configFile)),
		},
	}
}
