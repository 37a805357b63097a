package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/jward/scopelight"
)

// defaultConfigName is looked up in the working directory when --config is
// not given.
const defaultConfigName = ".scopelight.yaml"

// flagDebounce backs the --debounce flag of the interactive commands.
var flagDebounce time.Duration

// Config mirrors .scopelight.yaml. Flags given on the command line override
// file values.
type Config struct {
	Debounce   time.Duration `yaml:"debounce"`
	QueriesDir string        `yaml:"queries_dir"`
	RulesDir   string        `yaml:"rules_dir"`
	QueryFile  string        `yaml:"query_file"`
	LogLevel   string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Debounce:  scopelight.DefaultDelay,
		QueryFile: scopelight.DefaultQueryFile,
		LogLevel:  "warn",
	}
}

// loadConfig reads path, or the default config file when path is empty. A
// missing default file is not an error; a missing explicit one is.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if c.Debounce < 0 {
		return c, fmt.Errorf("parsing config %s: negative debounce %s", path, c.Debounce)
	}
	return c, nil
}

// override applies flags that were set explicitly on the command line.
func (c *Config) override(flags *pflag.FlagSet) {
	if flags.Changed("queries-dir") {
		c.QueriesDir = flagQueriesDir
	}
	if flags.Changed("rules-dir") {
		c.RulesDir = flagRulesDir
	}
	if flags.Changed("query-file") {
		c.QueryFile = flagQueryFile
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Lookup("debounce") != nil && flags.Changed("debounce") {
		c.Debounce = flagDebounce
	}
}

// parseLevel accepts slog level names, case-insensitively.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}
