package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/corehttp/internal/config"
	"github.com/vango-dev/corehttp/internal/logging"
)

func serveCmd() *cobra.Command {
	var (
		path      string
		host      string
		port      int
		staticDir string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the HTTP/1.1 and WebSocket server.

Flags override the configuration file, which overrides the defaults.
COREHTTP_* environment variables override both the file and the defaults.`,
		Example: `  corehttp serve
  corehttp serve --config corehttp.yaml
  corehttp serve --port 3000 --static ./public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("static") {
				cfg.Static.Enabled = true
				cfg.Static.Dir = staticDir
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(cfg.Logging, os.Stderr)

			a, err := newApp(cfg, logger, os.Stdout)
			if err != nil {
				return err
			}
			if err := a.start(); err != nil {
				return err
			}

			printBanner()
			scheme := "http"
			if cfg.TLS.Enabled {
				scheme = "https"
			}
			success("Listening on %s://%s", scheme, a.srv.Addr())
			if cfg.Static.Enabled {
				info("Static:     %s -> %s", cfg.Static.Prefix, cfg.Static.Dir)
			}
			if cfg.WebSocket.Enabled {
				info("WebSocket:  %v", cfg.WebSocket.Paths)
			}
			if a.adminLn != nil {
				info("Admin:      http://%s/metrics", a.adminLn.Addr())
			} else {
				warn("Admin server disabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.wait(ctx); err != nil {
				return err
			}
			success("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "Listen host")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Listen port")
	cmd.Flags().StringVar(&staticDir, "static", "", "Static content folder")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}
