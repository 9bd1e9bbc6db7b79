package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/verity/internal/core/domain"
)

var (
	queryTopK       int
	queryNoMetadata bool
	queryJSON       bool
	queryContext    string
	batchTopK       int
	batchJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the policy corpus",
	Long: `Retrieves the policy chunks most similar to the question and answers
with an extract of them, numbered citations and a confidence score.
Questions the corpus does not support are refused rather than guessed.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Answer a file of questions concurrently",
	Long: `Reads questions from a YAML file and answers them concurrently.
Results are printed in the order of the file.

The file is either a list of strings or a mapping with a questions key:

  questions:
    - How long does a card refund take?
    - Can I dispute a transfer?`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryNoMetadata, "no-metadata", false, "omit titles, sections and snippets from sources")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output result as JSON")
	queryCmd.Flags().StringVar(&queryContext, "context", "", "prior conversation for follow-up questions")
	rootCmd.AddCommand(queryCmd)

	batchCmd.Flags().IntVarP(&batchTopK, "top-k", "k", 0, "number of chunks per question (default from config)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(batchCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	opts := domain.QueryOptions{
		Collection: collection,
		TopK:       queryTopK,
	}
	if queryNoMetadata {
		include := false
		opts.IncludeMetadata = &include
	}

	ctx := contextOf(cmd)
	var (
		result *domain.QueryResult
		err    error
	)
	if queryContext != "" {
		result, err = queryService.QueryWithContext(ctx, args[0], queryContext, opts)
	} else {
		result, err = queryService.Query(ctx, args[0], opts)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, result)
	}
	newPrinter(cmd).queryResult(result)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	questions, err := readQuestions(args[0])
	if err != nil {
		return err
	}

	results, err := queryService.MultiQuery(contextOf(cmd), questions, domain.QueryOptions{
		Collection: collection,
		TopK:       batchTopK,
	})
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if batchJSON {
		return printJSON(cmd, results)
	}
	p := newPrinter(cmd)
	for i, r := range results {
		if i > 0 {
			p.printf("\n")
		}
		p.queryResult(r)
	}
	return nil
}

// questionFile is the mapping form of a batch file.
type questionFile struct {
	Questions []string `yaml:"questions"`
}

// readQuestions accepts either a YAML list or a mapping with a questions key.
func readQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s contains no questions", domain.ErrInvalidArgument, path)
	}
	return file.Questions, nil
}
