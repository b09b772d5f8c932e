package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the summary of one cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var showCmdFlags struct {
	json bool
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showCmdFlags.json, "json", false, "print the raw JSON summary")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler(cmd.Context())
	defer cancel()

	info, err := newClient().Cache(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to show cache %s: %w", args[0], err)
	}

	if showCmdFlags.json {
		return printJSON(cmd.OutOrStdout(), info)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name: %s\n", args[0])
	for _, key := range slices.Sorted(maps.Keys(info)) {
		fmt.Fprintf(out, "%s: %s\n", key, field(info, key))
	}
	return nil
}
