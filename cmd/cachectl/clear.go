package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear [NAME]",
	Short: "Clear one cache, or every cache when --all is set",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

var clearCmdFlags struct {
	all bool
}

var evictCmd = &cobra.Command{
	Use:   "evict NAME KEY",
	Short: "Remove one key from a cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runEvict,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(evictCmd)

	clearCmd.Flags().BoolVar(&clearCmdFlags.all, "all", false, "clear every cache")
}

func runClear(cmd *cobra.Command, args []string) error {
	if clearCmdFlags.all == (len(args) == 1) {
		return fmt.Errorf("pass either a cache name or --all")
	}

	ctx, cancel := setupSignalHandler(cmd.Context())
	defer cancel()

	client := newClient()
	if clearCmdFlags.all {
		if err := client.InvalidateAll(ctx); err != nil {
			return fmt.Errorf("failed to clear caches: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared every cache")
		return nil
	}

	if err := client.Invalidate(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
	return nil
}

func runEvict(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler(cmd.Context())
	defer cancel()

	if err := newClient().InvalidateKey(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to evict %s from %s: %w", args[1], args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "evicted %s from %s\n", args[1], args[0])
	return nil
}
