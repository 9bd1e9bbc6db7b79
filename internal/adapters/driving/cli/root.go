// Package cli implements the verity command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/app"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
	"github.com/custodia-labs/verity/internal/observability"
)

// version is set by SetVersion from build flags.
var version = "dev"

var (
	verbose    bool
	logLevel   string
	configDir  string
	dataDir    string
	collection string
	ephemeral  bool
)

// Services used by commands. They are wired from the service graph before a
// command runs, unless already set (tests inject mocks here).
var (
	ingestService     driving.IngestService
	watchService      driving.WatchService
	queryService      driving.QueryService
	groundingService  driving.GroundingService
	collectionService driving.CollectionService
	routingService    driving.RoutingService
	metrics           *observability.Metrics

	// defaultCollection is used by writers when --collection is not given.
	defaultCollection = domain.DefaultCollection

	graph *app.Graph
)

// skipServices marks commands that run without the service graph.
const skipServices = "skip-services"

var rootCmd = &cobra.Command{
	Use:   "verity",
	Short: "Grounded answers from bank policy documents",
	Long: `Verity answers customer-service questions from a corpus of bank policy
documents. Every answer is extracted from retrieved policy text, carries
citations and a calibrated confidence score, and is refused when the
knowledge base does not support it.

Typical flow:
  verity ingest ./policies
  verity query "How long does a card refund take?"
  verity check "Refunds are credited within 5 business days."`,
	SilenceUsage:       true,
	PersistentPreRunE:  connectServices,
	PersistentPostRunE: disconnectServices,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn or error")
	flags.StringVar(&configDir, "config-dir", "", "directory holding config.toml (default ~/.verity)")
	flags.StringVar(&dataDir, "data-dir", "", "directory holding the index (default ~/.verity/data)")
	flags.StringVarP(&collection, "collection", "c", "", "collection to use (default from config)")
	flags.BoolVar(&ephemeral, "ephemeral", false, "keep the index in memory for this run only")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if cerr := disconnectServices(rootCmd, nil); err == nil {
		err = cerr
	}
	return err
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func connectServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logLevel != "" {
		l, ok := logger.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logger.SetLevel(l)
	}

	if cmd.Annotations[skipServices] == "true" || queryService != nil {
		return nil
	}

	g, err := app.Build(cmd.Context(), app.Options{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Ephemeral: ephemeral,
	})
	if err != nil {
		return fmt.Errorf("starting verity: %w", err)
	}

	graph = g
	ingestService = g.Ingest
	watchService = g.Watch
	queryService = g.Query
	groundingService = g.Grounding
	collectionService = g.Collection
	routingService = g.Routing
	metrics = g.Metrics
	defaultCollection = g.Config.Retrieval.DefaultCollection
	return nil
}

func disconnectServices(_ *cobra.Command, _ []string) error {
	if graph == nil {
		return nil
	}
	err := graph.Close()
	graph = nil
	ingestService = nil
	watchService = nil
	queryService = nil
	groundingService = nil
	collectionService = nil
	routingService = nil
	metrics = nil
	return err
}

// targetCollection is the --collection flag or the configured default.
func targetCollection() string {
	if collection != "" {
		return collection
	}
	return defaultCollection
}

// contextOf returns the command context, falling back to Background when the
// command runs outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
