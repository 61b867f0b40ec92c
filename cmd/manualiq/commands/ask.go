package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/references"
)

// NewAskCmd constructs the `manualiq ask` command, which answers a single
// natural language question against the indexed manual and prints the
// answer with its table and figure citations.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed service manual",
		Long: `Answer a natural language maintenance question against the indexed manual.

The question is decomposed into section-anchored sub-questions, each
sub-question is retrieved concurrently with the configured strategy, and the
final answer is synthesized with citations to the tables and figures that
appear in the retrieved pages.

Examples:
  manualiq ask "what is the bolt torque for the axle mounting hardware?"
  manualiq ask "how do I bleed the boom lift cylinder?"
  RETRIEVAL_STRATEGY=fusion manualiq ask "wheel and tire specifications"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st, cleanup, err := buildStack(ctx, log)
			defer cleanup()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")
			result, err := st.Service.Answer(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Answer)
			printReferences(out, result.References)
			return nil
		},
	}

	return cmd
}

// printReferences writes the citation bundle after the answer text.
func printReferences(out io.Writer, refs references.References) {
	if len(refs.Tables) == 0 && len(refs.Figures) == 0 {
		return
	}
	fmt.Fprintln(out, "\nReferences:")
	for _, t := range refs.Tables {
		line := "  table " + t.ElementID
		if t.PageNumber > 0 {
			line += fmt.Sprintf(" (page %d)", t.PageNumber)
		}
		if t.PNGFile != "" {
			line += " — " + t.PNGFile
		}
		fmt.Fprintln(out, line)
	}
	for _, f := range refs.Figures {
		line := "  figure " + f.Label
		if f.PageNumber > 0 {
			line += fmt.Sprintf(" (page %d)", f.PageNumber)
		}
		if f.PNGFile != "" {
			line += " — " + f.PNGFile
		}
		fmt.Fprintln(out, line)
	}
}
