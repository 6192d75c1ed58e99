// Package console wires flags and environment into the console server.
package console

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/engagehq/console/internal/platform/config"
	consolesvc "github.com/engagehq/console/internal/services/console"
	"github.com/engagehq/console/internal/services/console/session"
)

const (
	defaultHTTPAddr = "localhost:8080"
	defaultDBPath   = "data/console.db"
)

// consoleEnv captures startup defaults from the process environment.
type consoleEnv struct {
	HTTPAddr          string        `env:"ENGAGE_CONSOLE_HTTP_ADDR"`
	DBPath            string        `env:"ENGAGE_CONSOLE_DB_PATH"`
	SessionSecret     string        `env:"ENGAGE_CONSOLE_SESSION_SECRET"`
	SessionTTL        time.Duration `env:"ENGAGE_CONSOLE_SESSION_TTL"`
	BootstrapName     string        `env:"ENGAGE_CONSOLE_BOOTSTRAP_NAME"`
	BootstrapEmail    string        `env:"ENGAGE_CONSOLE_BOOTSTRAP_EMAIL"`
	BootstrapPassword string        `env:"ENGAGE_CONSOLE_BOOTSTRAP_PASSWORD"`
}

// Config holds the console command configuration.
type Config struct {
	HTTPAddr      string
	DBPath        string
	SessionSecret string
	SessionTTL    time.Duration
	Bootstrap     consolesvc.BootstrapConfig
}

// ParseConfig merges environment defaults and flags into a Config. The
// session secret and bootstrap credentials are environment-only so they never
// show up in process listings.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg consoleEnv
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:      envCfg.HTTPAddr,
		DBPath:        envCfg.DBPath,
		SessionSecret: envCfg.SessionSecret,
		SessionTTL:    envCfg.SessionTTL,
		Bootstrap: consolesvc.BootstrapConfig{
			Name:     envCfg.BootstrapName,
			Email:    envCfg.BootstrapEmail,
			Password: envCfg.BootstrapPassword,
		},
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Run starts the console server and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := consolesvc.NewServer(ctx, consolesvc.Config{
		HTTPAddr:      cfg.HTTPAddr,
		DBPath:        cfg.DBPath,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		Bootstrap:     cfg.Bootstrap,
	})
	if err != nil {
		return fmt.Errorf("init console server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve console: %w", err)
	}
	return nil
}
