package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/pterm/pterm"

	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse"
)

// CLIEmitter prints run progress to the terminal with pterm.
type CLIEmitter struct {
	out       io.Writer
	verbosity int
}

var _ pulse.ProgressEmitter = (*CLIEmitter)(nil)

// NewCLIEmitter creates a terminal progress emitter writing to out.
func NewCLIEmitter(out io.Writer, verbosity int) *CLIEmitter {
	return &CLIEmitter{out: out, verbosity: verbosity}
}

// EmitStage prints a stage announcement
func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Fprintln(e.out, fmt.Sprintf("→ %s: %s", pterm.LightCyan(stage), message))
}

// EmitProgress prints how many items of the current stage are done
func (e *CLIEmitter) EmitProgress(done, total int) {
	pterm.Fprintln(e.out, fmt.Sprintf("  %s of %d records", pterm.Green(fmt.Sprintf("%d", done)), total))
}

// EmitComplete prints the run summary, sorted by key
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Fprintln(e.out, pterm.Green("✓ Run complete"))
	if e.verbosity < 1 {
		return
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pterm.Fprintln(e.out, fmt.Sprintf("  %s: %v", k, summary[k]))
	}
}

// EmitError prints the failing stage
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Fprintln(e.out, pterm.Red(fmt.Sprintf("✗ %s failed: %v", stage, err)))
}
