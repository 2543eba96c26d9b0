package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/stencilhq/stencil/internal"
	"github.com/stencilhq/stencil/internal/mcpserver"
	"github.com/stencilhq/stencil/internal/pointer"
	"github.com/stencilhq/stencil/internal/registry"
	"github.com/stencilhq/stencil/internal/snapshot"
	"github.com/stencilhq/stencil/internal/versionsvc"
	pkgconfig "github.com/stencilhq/stencil/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.Bool("mcp") {
		return runMCP(ctx, cfg)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// runMCP serves the version tools over MCP stdio instead of HTTP. Logs go
// to stderr so stdout stays clean for the protocol stream.
func runMCP(ctx context.Context, cfg *internal.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Projects.Path, 0o755); err != nil {
		return fmt.Errorf("create projects dir: %w", err)
	}
	snapshots, err := snapshot.NewStore(cfg.Projects.Path)
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}
	pointers, err := pointer.NewManager(cfg.Projects.Path)
	if err != nil {
		return fmt.Errorf("init pointer manager: %w", err)
	}
	db, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	defer db.Close()

	svc := versionsvc.NewService(snapshots, pointers, db)
	if err := svc.ReconcileAll(ctx); err != nil {
		logger.Warn("startup reconcile failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(svc).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:   "stencil",
		Usage:  "Version and release management for replicated sites: immutable snapshots, semantic numbering, atomic activation, rollback",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "mcp",
				Usage:   "Serve MCP tools on stdio instead of starting the HTTP server",
				Sources: cli.EnvVars("APP_MCP"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
