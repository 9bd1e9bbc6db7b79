package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var routeJSON bool

var routeCmd = &cobra.Command{
	Use:   "route [complaint]",
	Short: "Find the department for a complaint",
	Long: `Answers the complaint against the policy corpus and reports the
department declared on the top cited section. Nothing is routed when the
answer is not grounded.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "output route as JSON")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routingService == nil {
		return errors.New("routing service not configured")
	}

	route, err := routingService.Route(contextOf(cmd), args[0], collection)
	if err != nil {
		return fmt.Errorf("route failed: %w", err)
	}

	if routeJSON {
		return printJSON(cmd, route)
	}

	p := newPrinter(cmd)
	if route.Department == "" {
		p.printf("No department found (confidence %.3f).\n", route.Confidence)
		return nil
	}
	p.printf("Department: %s  Confidence: %.3f\n", p.render(styleTitle, route.Department), route.Confidence)
	if route.Citation != nil {
		p.printf("Based on: %s", route.Citation.DocumentID)
		if route.Citation.Section != "" {
			p.printf(" / %s", route.Citation.Section)
		}
		p.printf("\n")
	}
	return nil
}
