package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jward/scopelight"
	"github.com/jward/scopelight/internal/runtime"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List grammars, query availability and optional fragment support",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func runLanguages(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return outputError("languages", err)
	}
	langs, err := describeLanguages(e)
	if err != nil {
		return outputError("languages", err)
	}
	return outputResult(CLIResult{Command: "languages", Results: langs})
}

// describeLanguages reports every grammar. Fragment probes only run for
// languages with a query file.
func describeLanguages(e *scopelight.Engine) ([]CLILanguage, error) {
	var out []CLILanguage
	for _, lang := range runtime.Languages() {
		l := CLILanguage{
			Language:   lang,
			Extensions: runtime.Extensions(lang),
			Queries:    e.HasQueries(lang),
			Rules:      e.HasRules(lang),
		}
		if l.Queries {
			outcomes, err := e.Probe(lang)
			if err != nil && !errors.Is(err, scopelight.ErrUnknownScope) {
				return nil, err
			}
			for _, o := range outcomes {
				l.Fragments = append(l.Fragments, CLIFragment{
					Name:      o.Fragment,
					Supported: o.Supported,
					Missing:   o.Missing,
					Reason:    o.Reason,
				})
			}
		}
		out = append(out, l)
	}
	return out, nil
}
