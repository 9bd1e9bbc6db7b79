package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/verity/internal/core/domain"
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true)
	styleSubtle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleSupported = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")) // green
	stylePartial   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")) // yellow
	styleRefused   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))  // red
	styleAnswer    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)
)

// printer renders results, styled only when writing to a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...) //nolint:errcheck // terminal output
}

func (p *printer) verdict(v domain.Verdict) string {
	switch v {
	case domain.VerdictSupported:
		return p.render(styleSupported, v.String())
	case domain.VerdictPartiallySupported:
		return p.render(stylePartial, v.String())
	default:
		return p.render(styleRefused, v.String())
	}
}

func (p *printer) queryResult(r *domain.QueryResult) {
	p.printf("%s %s\n", p.render(styleTitle, "Q:"), r.Question)
	p.printf("%s\n", p.render(styleAnswer, r.Answer))
	p.printf("Verdict: %s  Confidence: %.3f  Grounded: %t\n", p.verdict(r.Verdict), r.Confidence, r.Grounded)
	if r.Message != "" {
		p.printf("%s\n", p.render(styleSubtle, r.Message))
	}
	if r.Error != "" {
		p.printf("Error: %s\n", r.Error)
	}
	p.sources(r.Sources)
}

func (p *printer) groundingVerdict(v *domain.GroundingVerdict) {
	p.printf("%s %s\n", p.render(styleTitle, "Statement:"), v.Statement)
	p.printf("Verdict: %s  Confidence: %.3f\n", p.verdict(v.Verdict), v.Confidence)
	if v.Error != "" {
		p.printf("Error: %s\n", v.Error)
	}
	p.sources(v.SupportingEvidence)
}

func (p *printer) sources(citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	p.printf("\n%s\n", p.render(styleTitle, "Sources:"))
	for i := range citations {
		c := &citations[i]
		label := c.DocumentID
		if c.Title != "" {
			label = c.Title
		}
		var where []string
		if c.Section != "" {
			where = append(where, c.Section)
		}
		if c.Department != "" {
			where = append(where, "dept "+c.Department)
		}
		suffix := ""
		if len(where) > 0 {
			suffix = " (" + strings.Join(where, ", ") + ")"
		}
		p.printf("  [%d] %s%s %s\n", c.Rank, label, suffix, p.render(styleSubtle, fmt.Sprintf("%.3f", c.Similarity)))
		if c.Snippet != "" {
			p.printf("      %s\n", p.render(styleSubtle, c.Snippet))
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
