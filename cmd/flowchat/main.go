// Command flowchat runs the natural-language NiFi flow manager: an HTTP
// chat service plus an interactive terminal client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"flowchat/common/version"
	"flowchat/internal/cache"
	"flowchat/internal/chatui"
	"flowchat/internal/config"
	"flowchat/internal/dispatch"
	"flowchat/internal/nifi"
	"flowchat/internal/observability"
	"flowchat/internal/pipeline"
	"flowchat/internal/server"
	"flowchat/internal/store"
	"flowchat/internal/validate"
)

func main() {
	// A missing .env is fine; explicit environment always wins anyway.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "flowchat",
		Usage:   "Manage Apache NiFi flows through natural-language chat",
		Version: version.Info(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"FLOWCHAT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the chat HTTP server",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Listen address (overrides config)",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port (overrides config)",
					},
				},
			},
			{
				Name:   "chat",
				Usage:  "Open an interactive chat session against a running server",
				Action: runChat,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "Base URL of the flowchat server (overrides config)",
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Println(version.Info())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "flowchat: %v\n", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if host := c.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	observability.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.Info("starting flowchat server",
		"version", version.Info(), "nifi_url", cfg.NiFi.URL, "addr", cfg.ListenAddr())

	auditStore, err := store.New(cfg.Audit.DatabasePath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditStore.Close()

	client := nifi.New(nifi.Config{
		BaseURL:       cfg.NiFi.URL,
		Auth:          nifi.AuthType(cfg.NiFi.AuthType),
		Username:      cfg.NiFi.Username,
		Password:      cfg.NiFi.Password,
		Token:         cfg.NiFi.Token,
		SkipTLSVerify: !cfg.NiFi.SSLVerify,
		Timeout:       cfg.RequestTimeout(),
	})

	// Connection test is advisory: the server comes up even when NiFi is
	// down, and replies degrade gracefully until it returns.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if nifiVersion, err := client.About(probeCtx); err != nil {
		slog.Warn("NiFi is not reachable at startup", "err", err)
	} else {
		slog.Info("connected to NiFi", "nifi_version", nifiVersion)
	}
	cancel()

	stateCache := cache.New(client, cfg.CacheTTL())
	p := pipeline.New(
		validate.New(stateCache),
		dispatch.New(client, stateCache, cfg.Retry.MaxAttempts),
		auditStore,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server.New(p, client, auditStore).SetupRoutes(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runChat(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	serverURL := cfg.UI.ServerURL
	if override := c.String("server"); override != "" {
		serverURL = override
	}

	// The TUI owns the terminal; keep log noise out of it.
	observability.Setup("error", cfg.Log.Format)

	return chatui.Run(serverURL, uuid.NewString())
}
