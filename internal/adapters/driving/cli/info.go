package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
)

var (
	infoAll  bool
	infoJSON bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show collection statistics",
	Long: `Shows document and chunk counts for a collection. A collection with no
chunks is not ready to answer questions.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVarP(&infoAll, "all", "a", false, "show every collection")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return errors.New("collection service not configured")
	}

	ctx := contextOf(cmd)
	var stats []domain.CollectionStats
	if infoAll {
		all, err := collectionService.List(ctx)
		if err != nil {
			return fmt.Errorf("listing collections: %w", err)
		}
		stats = all
	} else {
		one, err := collectionService.Info(ctx, collection)
		if err != nil {
			return fmt.Errorf("collection info: %w", err)
		}
		stats = []domain.CollectionStats{one}
	}

	if infoJSON {
		if infoAll {
			return printJSON(cmd, stats)
		}
		return printJSON(cmd, stats[0])
	}

	if len(stats) == 0 {
		cmd.Println("No collections found.")
		return nil
	}
	p := newPrinter(cmd)
	for _, s := range stats {
		status := "ready"
		if s.IsEmpty() {
			status = "empty"
		}
		p.printf("%s (%s)\n", p.render(styleTitle, s.Name), status)
		p.printf("  Documents: %d\n", s.DocumentCount)
		p.printf("  Chunks:    %d\n", s.ChunkCount)
		if s.Dimension > 0 {
			p.printf("  Embedding: %s (%d dimensions)\n", s.Model, s.Dimension)
		}
	}
	return nil
}
