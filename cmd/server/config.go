package main

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	auth "github.com/goliatone/go-auth-tokens"
	"github.com/goliatone/go-auth-tokens/email"
)

type serverConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppName  string `env:"APP_NAME" envDefault:"Account"`

	AccessSecret        string            `env:"AUTH_ACCESS_TOKEN_SECRET,required,notEmpty"`
	AccessMinutes       int               `env:"AUTH_ACCESS_TOKEN_DURATION_MINUTES" envDefault:"15"`
	AccessKeyID         string            `env:"AUTH_ACCESS_TOKEN_KEY_ID" envDefault:"current"`
	PreviousAccessKeys  map[string]string `env:"AUTH_ACCESS_TOKEN_PREVIOUS_SECRETS"`
	RefreshSecret       string            `env:"AUTH_REFRESH_TOKEN_SECRET,required,notEmpty"`
	RefreshHours        int               `env:"AUTH_REFRESH_TOKEN_DURATION_HOURS" envDefault:"24"`
	ResetMinutes        int               `env:"RESET_PASSWORD_TOKEN_DURATION_MINUTES" envDefault:"60"`
	ResetURL            string            `env:"RESET_PASSWORD_URL" envDefault:"http://localhost:8080/auth/reset-password"`
	Issuer              string            `env:"AUTH_ISSUER"`
	MaxSessions         int               `env:"AUTH_MAX_SESSIONS" envDefault:"0"`
	BcryptCost          int               `env:"AUTH_BCRYPT_COST" envDefault:"0"`
	DeterministicIDs    bool              `env:"AUTH_DETERMINISTIC_IDS" envDefault:"false"`
	OperationTimeoutSec int               `env:"AUTH_OPERATION_TIMEOUT_SECONDS" envDefault:"10"`

	EmailFrom    string `env:"EMAIL_FROM" envDefault:"noreply@example.com"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"2525"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPTLS      bool   `env:"SMTP_TLS" envDefault:"false"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared"`
	DatabaseDebug  bool   `env:"DATABASE_DEBUG" envDefault:"false"`
}

func loadConfig() (*serverConfig, error) {
	cfg := &serverConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	return cfg, nil
}

// authConfig builds and validates the library configuration.
func (c *serverConfig) authConfig() (*auth.Config, error) {
	cfg := auth.DefaultConfig()
	cfg.AccessSecret = c.AccessSecret
	cfg.RefreshSecret = c.RefreshSecret
	cfg.AccessTokenTTL = time.Duration(c.AccessMinutes) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(c.RefreshHours) * time.Hour
	cfg.ResetTokenTTL = time.Duration(c.ResetMinutes) * time.Minute
	cfg.AccessKeyID = c.AccessKeyID
	cfg.PreviousAccessSecrets = c.PreviousAccessKeys
	cfg.Issuer = c.Issuer
	cfg.MaxSessions = c.MaxSessions
	cfg.BcryptCost = c.BcryptCost
	cfg.DeterministicIDs = c.DeterministicIDs
	cfg.OperationTimeout = time.Duration(c.OperationTimeoutSec) * time.Second
	cfg.EmailFrom = c.EmailFrom
	cfg.ResetURL = c.ResetURL

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *serverConfig) smtpConfig() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		TLS:      c.SMTPTLS,
	}
}
