// Command cachectl inspects and clears the caches of a running service
// through its management endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-cacheable/management"
)

var rootCmd = &cobra.Command{
	Use:           "cachectl",
	Short:         "Inspect and clear caches through a management endpoint",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var rootCmdFlags struct {
	endpoint string
	timeout  time.Duration
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.endpoint, "endpoint", envOr("CACHECTL_ENDPOINT", "http://localhost:8080"),
		"base URL the management handler is mounted at")
	rootCmd.PersistentFlags().DurationVar(&rootCmdFlags.timeout, "timeout", 30*time.Second,
		"timeout for each request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient() *management.Client {
	return management.NewClient(rootCmdFlags.endpoint, nil)
}

func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, rootCmdFlags.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
