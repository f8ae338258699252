package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/table1837/eightysix/pkg/types"
)

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// formatEvent renders one applied record as a single line.
func formatEvent(scope string, r types.Record, color bool) string {
	tag, c := "86'd", ansiRed
	if r.Status == types.StatusAvailable {
		tag, c = "back", ansiGreen
	}
	if color {
		tag = c + tag + ansiReset
	}
	line := fmt.Sprintf("[%s] %s (%s) by %s", tag, r.ItemKey, scope, r.ActorID)
	if r.Reason != "" {
		line += ": " + r.Reason
	}
	return line
}

// writeTable prints records as aligned columns.
func writeTable(w io.Writer, records []types.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "nothing 86'd")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tSTATUS\tSINCE\tBY\tREASON")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ItemKey, r.Status, humanize.Time(r.AppliedAt), r.ActorID, r.Reason)
	}
	return tw.Flush()
}
