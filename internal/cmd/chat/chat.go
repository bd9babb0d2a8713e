// Package chat parses chat command flags and composes transport entrypoints.
package chat

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/rentora/rentora/internal/platform/cmd"
	server "github.com/rentora/rentora/internal/services/chat/app"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr        string `env:"RENTORA_CHAT_HTTP_ADDR"    envDefault:":8006"`
	DatabasePath    string `env:"RENTORA_CHAT_DB_PATH"      envDefault:"chat.db"`
	TokenSigningKey string `env:"RENTORA_JWT_SIGNING_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.StringVar(&cfg.DatabasePath, "db-path", cfg.DatabasePath, "chat SQLite database path")
	fs.StringVar(&cfg.TokenSigningKey, "token-signing-key", cfg.TokenSigningKey, "access token signing key shared with the REST login flow")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			DatabasePath:    cfg.DatabasePath,
			TokenSigningKey: cfg.TokenSigningKey,
		}); err != nil {
			return fmt.Errorf("run chat service: %w", err)
		}
		return nil
	})
}
