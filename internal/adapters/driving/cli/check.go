package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	checkTopK int
	checkJSON bool
)

var checkCmd = &cobra.Command{
	Use:   "check [statement]",
	Short: "Check a statement against the policy corpus",
	Long: `Classifies a drafted answer or claim as SUPPORTED, PARTIALLY_SUPPORTED
or NOT_SUPPORTED by the indexed policy documents, listing the evidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&checkTopK, "top-k", "k", 0, "number of chunks to consider (default from config)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output verdict as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if groundingService == nil {
		return errors.New("grounding service not configured")
	}

	verdict, err := groundingService.CheckGrounding(contextOf(cmd), args[0], collection, checkTopK)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if checkJSON {
		return printJSON(cmd, verdict)
	}
	newPrinter(cmd).groundingVerdict(verdict)
	return nil
}
