package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/corehttp/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬─┐┌─┐┬ ┬┌┬┐┌┬┐┌─┐
  │  │ │├┬┘├┤ ├─┤ │  │ ├─┘
  └─┘└─┘┴└─└─┘┴ ┴ ┴  ┴ ┴
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corehttp",
		Short: "A small HTTP/1.1 and WebSocket server",
		Long: `corehttp is a minimal HTTP/1.1 server with WebSocket support.

It serves a static content folder, echoes WebSocket messages on the
configured paths and exposes Prometheus metrics on a separate admin
address. Configuration comes from a YAML or JSON file and COREHTTP_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.New("X001").Wrap(err)
	})

	rootCmd.AddCommand(
		serveCmd(),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
