package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/connectors/filesystem"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
)

var (
	ingestForce   bool
	ingestReindex bool
	ingestWatch   bool
	ingestJSON    bool
)

// newConnector opens the corpus at paths. Tests replace it.
var newConnector = func(paths []string) driven.Connector {
	return filesystem.New(paths)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index policy documents",
	Long: `Chunks, embeds and indexes the .txt, .md and .html files under the given paths.
Unchanged documents are skipped; changed documents replace their previous
chunks. Use --watch to keep the collection in step with the files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-embed documents even when unchanged")
	ingestCmd.Flags().BoolVar(&ingestReindex, "reindex", false, "drop and rebuild the collection")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the paths after ingesting")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	conn := newConnector(args)
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Closing connector: %v", err)
		}
	}()

	ctx := contextOf(cmd)
	name := targetCollection()
	report, err := ingestService.IngestSource(ctx, name, conn, domain.IngestOptions{
		Force:   ingestForce,
		Reindex: ingestReindex,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	if !ingestWatch {
		return nil
	}
	if watchService == nil {
		return errors.New("watch service not configured")
	}

	cmd.Printf("Watching %d path(s) for changes. Press Ctrl+C to stop.\n", len(args))
	err = watchService.Watch(ctx, name, conn)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printReport(cmd *cobra.Command, r *domain.IngestReport) {
	p := newPrinter(cmd)
	p.printf("%s %s\n", p.render(styleTitle, "Collection:"), r.Collection)
	p.printf("  Ingested:  %d\n", r.DocumentsIngested)
	p.printf("  Unchanged: %d\n", r.DocumentsUnchanged)
	p.printf("  Chunks:    %d created, %d skipped\n", r.ChunksCreated, r.ChunksSkipped)
	if len(r.Skipped) > 0 {
		p.printf("  Skipped:   %d\n", len(r.Skipped))
		for _, s := range r.Skipped {
			where := s.URI
			if where == "" {
				where = s.DocumentID
			}
			p.printf("    %s: %s\n", where, p.render(styleSubtle, s.Reason))
		}
	}
}
