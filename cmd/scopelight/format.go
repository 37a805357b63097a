package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatHighlightsText formats per-file highlight results as aligned
// columns, one row per region.
func formatHighlightsText(w io.Writer, files []CLIFileHighlights) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLAYER\tLINE\tCOL\tSPAN\tTEXT")
	for _, f := range files {
		switch {
		case f.Error != "":
			fmt.Fprintf(tw, "%s\terror\t\t\t\t%s\n", f.File, f.Error)
			continue
		case f.Skipped != "":
			fmt.Fprintf(tw, "%s\tskipped\t\t\t\t%s\n", f.File, f.Skipped)
		}
		for _, r := range f.Regions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d-%d\t%s\n",
				f.File, r.Layer, r.Line, r.Col, r.Start, r.End, quoteText(r.Text))
		}
	}
	tw.Flush()
}

// formatLanguagesText formats the grammar table as aligned columns.
func formatLanguagesText(w io.Writer, langs []CLILanguage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tEXTENSIONS\tQUERIES\tRULES\tFRAGMENTS")
	for _, l := range langs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			l.Language, strings.Join(l.Extensions, ","), yesNo(l.Queries), yesNo(l.Rules), fragmentSummary(l.Fragments))
	}
	tw.Flush()
}

// fragmentSummary renders fragments as "name" or "name(-missing,...)".
func fragmentSummary(frags []CLIFragment) string {
	if len(frags) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		switch {
		case f.Supported:
			parts = append(parts, f.Name)
		case len(f.Missing) > 0:
			parts = append(parts, fmt.Sprintf("%s(-%s)", f.Name, strings.Join(f.Missing, ",")))
		default:
			parts = append(parts, f.Name+"(-)")
		}
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// quoteText keeps multi-line region text on one row.
func quoteText(s string) string {
	const maxLen = 40
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return fmt.Sprintf("%q", s)
}

// outputResult writes a result in the selected format to stdout.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "text" {
		return writeResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// writeResultText dispatches to the appropriate text formatter based on the
// result type.
func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIFileHighlights:
		formatHighlightsText(w, v)
	case []CLILanguage:
		formatLanguagesText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
