package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/imageio"
	"github.com/kozaktomas/faceauth/internal/index"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Rank enrolled identities by distance to a face",
	Long: `Compute the face embedding of an image and print the closest enrolled
identities with their distances. Identities within the match threshold are
marked with an asterisk. This does not grant access and never enrolls.

Examples:
  faceauth nearest --image photos/me.jpg
  faceauth nearest --image photos/me.jpg -k 10`,
	Args: cobra.NoArgs,
	RunE: runNearest,
}

func init() {
	rootCmd.AddCommand(nearestCmd)

	nearestCmd.Flags().String("image", "", "Image file to compare")
	nearestCmd.Flags().IntP("limit", "k", constants.DefaultNearestLimit, "Number of identities to show")
	_ = nearestCmd.MarkFlagRequired("image")
}

func runNearest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	limit := mustGetInt(cmd, "limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	imageData, err := imageio.LoadFile(mustGetString(cmd, "image"), cfg.Image.MaxSize)
	if err != nil {
		return err
	}
	embedding, err := newEmbeddingClient().ExtractFace(ctx, imageData)
	if err != nil {
		return err
	}

	// Records of another dimensionality than the query are skipped.
	records, skipped, err := newRepository().LoadAll(ctx, len(embedding))
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(out, "Warning: skipped %s: %v\n", s.Ref.Filename, s.Err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "Empty Directory!")
		return nil
	}

	idx, err := index.Build(records, cfg.Match.Metric)
	if err != nil {
		return err
	}

	neighbors, err := idx.Nearest(embedding, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Nearest %d of %d identities (%s, threshold %.2f):\n",
		len(neighbors), idx.Len(), cfg.Match.Metric, cfg.Match.Threshold)
	for _, n := range neighbors {
		marker := " "
		if n.Distance <= cfg.Match.Threshold {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %.4f  %s\n", marker, n.Ref.ID, n.Distance, n.Ref.DisplayName)
	}
	return nil
}
