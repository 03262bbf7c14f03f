package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/faceauth/internal/identity"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Long: `List the identities enrolled in the store. The store directory is created
if it does not exist yet.

Examples:
  faceauth list
  faceauth list --output yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("output", "o", "text", "Output format: text, yaml or json")
}

type listEntry struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	output := mustGetString(cmd, "output")
	switch output {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q (expected text, yaml or json)", output)
	}

	repo := newRepository()
	if _, err := repo.EnsureInitialized(ctx); err != nil {
		return err
	}
	refs, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return printRefs(cmd.OutOrStdout(), refs, output)
}

func printRefs(out io.Writer, refs []identity.Ref, output string) error {
	if output == "text" {
		if len(refs) == 0 {
			fmt.Fprintln(out, "Empty Directory!")
			return nil
		}
		for _, ref := range refs {
			fmt.Fprintln(out, ref.ID)
		}
		return nil
	}

	entries := make([]listEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, listEntry{ID: ref.ID.String(), Name: ref.DisplayName})
	}

	if output == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
