package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/scopelight"
)

var (
	flagOffsets []uint
	flagAt      []string
	flagSelect  []string
	flagRender  bool
)

var highlightCmd = &cobra.Command{
	Use:   "highlight FILE...",
	Short: "Run one highlight pass over files",
	Long: `Runs a single highlight pass over each file with the given carets and
selections, and prints the caller, argument and reference layers.

Carets are byte offsets (--offset), 1-based LINE:COL positions (--at), or
START-END byte ranges (--select). Every file gets the same selections.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHighlight,
}

func init() {
	f := highlightCmd.Flags()
	f.UintSliceVar(&flagOffsets, "offset", nil, "caret byte offset (repeatable)")
	f.StringSliceVar(&flagAt, "at", nil, "caret as LINE:COL, 1-based, column in bytes (repeatable)")
	f.StringSliceVar(&flagSelect, "select", nil, "selection as START-END byte offsets (repeatable)")
	f.BoolVar(&flagRender, "render", false, "with --format text, print each file with its highlights styled")
}

func runHighlight(cmd *cobra.Command, args []string) error {
	if len(flagOffsets)+len(flagAt)+len(flagSelect) == 0 {
		return outputError("highlight", fmt.Errorf("no caret: pass --offset, --at or --select"))
	}

	e, err := newEngine()
	if err != nil {
		return outputError("highlight", err)
	}

	reqs := make([]scopelight.FileRequest, 0, len(args))
	for _, path := range args {
		sels, err := selectionsFor(path, flagOffsets, flagSelect, flagAt)
		if err != nil {
			return outputError("highlight", err)
		}
		reqs = append(reqs, scopelight.FileRequest{Path: path, Selections: sels})
	}

	results, runErr := e.HighlightFiles(cmd.Context(), reqs)

	out := make([]CLIFileHighlights, len(results))
	for i, r := range results {
		out[i] = toCLIFile(r)
	}
	if err := outputResult(CLIResult{Command: "highlight", Results: out}); err != nil {
		return err
	}

	if flagRender && flagFormat == "text" {
		for _, r := range results {
			if r.Err != nil || r.Source == nil {
				continue
			}
			fmt.Fprintf(os.Stdout, "\n%s\n%s\n", statusStyle.Render(r.Path), renderSource(r.Source, r.Highlights, noCaret))
		}
	}

	if runErr != nil {
		// Per-file errors are already part of the JSON envelope.
		errorHandled = flagFormat == "json"
		return runErr
	}
	return nil
}

// selectionsFor builds the selections for one file. Only --at needs the
// file's contents; an unreadable file is reported later by the highlight
// pass itself.
func selectionsFor(path string, offsets []uint, selects, at []string) ([]scopelight.Selection, error) {
	sels := make([]scopelight.Selection, 0, len(offsets)+len(selects)+len(at))
	for _, o := range offsets {
		sels = append(sels, scopelight.Caret(uint32(o)))
	}
	for _, s := range selects {
		sel, err := parseSelection(s)
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	if len(at) == 0 {
		return sels, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return sels, nil
	}
	ix := newLineIndex(src)
	for _, s := range at {
		line, col, err := parseLineCol(s)
		if err != nil {
			return nil, err
		}
		off, ok := ix.offsetAt(line, col)
		if !ok {
			return nil, fmt.Errorf("--at %s: %s has %d lines", s, path, len(ix.starts))
		}
		sels = append(sels, scopelight.Caret(off))
	}
	return sels, nil
}

// parseSelection parses "START-END" byte offsets. Either order is accepted;
// the caret is at END.
func parseSelection(s string) (scopelight.Selection, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return scopelight.Selection{}, fmt.Errorf("invalid selection %q: want START-END", s)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(a), 10, 32)
	if err != nil {
		return scopelight.Selection{}, fmt.Errorf("invalid selection %q: %w", s, err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(b), 10, 32)
	if err != nil {
		return scopelight.Selection{}, fmt.Errorf("invalid selection %q: %w", s, err)
	}
	return scopelight.Selection{A: uint32(start), B: uint32(end)}, nil
}

// parseLineCol parses "LINE:COL".
func parseLineCol(s string) (int, int, error) {
	l, c, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid position %q: want LINE:COL", s)
	}
	line, err := strconv.Atoi(strings.TrimSpace(l))
	if err != nil || line < 1 {
		return 0, 0, fmt.Errorf("invalid position %q: line must be a positive number", s)
	}
	col, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil || col < 1 {
		return 0, 0, fmt.Errorf("invalid position %q: column must be a positive number", s)
	}
	return line, col, nil
}

// toCLIFile flattens a FileResult into rows, layer by layer.
func toCLIFile(r scopelight.FileResult) CLIFileHighlights {
	out := CLIFileHighlights{
		File:     r.Path,
		Language: r.Language,
		Skipped:  r.Skipped,
		Regions:  []CLIRegion{},
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		return out
	}
	ix := newLineIndex(r.Source)
	for _, layer := range scopelight.Layers {
		for _, reg := range r.Highlights.Layer(layer) {
			line, col := ix.lineCol(reg.Start)
			out.Regions = append(out.Regions, CLIRegion{
				Layer: string(layer),
				Start: reg.Start,
				End:   reg.End,
				Line:  line,
				Col:   col,
				Text:  sourceText(r.Source, reg),
			})
		}
	}
	return out
}

func sourceText(src []byte, r scopelight.Region) string {
	end := min(int(r.End), len(src))
	start := min(int(r.Start), end)
	return string(src[start:end])
}
