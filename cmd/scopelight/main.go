package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/scopelight"
)

var (
	flagConfig     string
	flagLogLevel   string
	flagQueriesDir string
	flagRulesDir   string
	flagQueryFile  string
	flagFormat     string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg and logger are populated by the root command's PersistentPreRunE.
var (
	cfg    Config
	logger = slog.Default()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "scopelight",
	Short:         "Scope-aware call-site and reference highlighting",
	Long:          "Scopelight parses source with tree-sitter and highlights the call around a caret, its argument list, and the definitions a variable use resolves to.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		loaded, err := loadConfig(flagConfig)
		if err != nil {
			return err
		}
		loaded.override(cmd.Flags())
		level, err := parseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
	// No Run — prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: "+defaultConfigName+" in the working directory, if present)")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.StringVar(&flagQueriesDir, "queries-dir", "", "load query packs from disk instead of the bundled ones")
	pf.StringVar(&flagRulesDir, "rules-dir", "", "load exclusion rule scripts from disk instead of the bundled ones")
	pf.StringVar(&flagQueryFile, "query-file", scopelight.DefaultQueryFile, "query file name inside each language directory")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(viewCmd)
}

// newEngine builds an Engine from the effective configuration.
func newEngine() (*scopelight.Engine, error) {
	opts := []scopelight.Option{scopelight.WithLogger(logger)}
	if cfg.QueriesDir != "" {
		opts = append(opts, scopelight.WithQueriesDir(cfg.QueriesDir))
	}
	if cfg.RulesDir != "" {
		opts = append(opts, scopelight.WithRulesDir(cfg.RulesDir))
	}
	if cfg.QueryFile != "" {
		opts = append(opts, scopelight.WithQueryFile(cfg.QueryFile))
	}
	e, err := scopelight.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}
