// Package main provides treectl, a CLI to seed and inspect skill forests
// in the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/di"
)

func openContainer(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := config.NewLoader(os.Getenv("CONFIG_DIR"), "").Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	// websocket sessions and remote sinks are of no use to a one-shot CLI
	cfg.WebSocket.Enabled = false
	cfg.Server.RateLimitPerMinute = 0
	return di.InitializeContainer(ctx, cfg)
}

func main() {
	if err := newRootCmd(openContainer).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
