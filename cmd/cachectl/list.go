package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every cache with its backend and size",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var listCmdFlags struct {
	json bool
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listCmdFlags.json, "json", false, "print the raw JSON summary")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler(cmd.Context())
	defer cancel()

	caches, err := newClient().Caches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list caches: %w", err)
	}

	if listCmdFlags.json {
		return printJSON(cmd.OutOrStdout(), caches)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBACKEND\tSIZE")
	for _, name := range slices.Sorted(maps.Keys(caches)) {
		info := caches[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, field(info, "backend"), field(info, "size"))
	}
	return w.Flush()
}

func field(info map[string]any, key string) string {
	v, ok := info[key]
	if !ok || v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
