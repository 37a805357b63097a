package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopelight"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Config ---

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")

	c := defaultConfig()
	assert.Equal(t, scopelight.DefaultDelay, c.Debounce)
	assert.Equal(t, scopelight.DefaultQueryFile, c.QueryFile)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), ".scopelight.yaml", `
debounce: 120ms
queries_dir: /srv/queries
log_level: debug
`)
	c, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 120*time.Millisecond, c.Debounce)
	assert.Equal(t, "/srv/queries", c.QueriesDir)
	assert.Equal(t, "", c.RulesDir)
	assert.Equal(t, scopelight.DefaultQueryFile, c.QueryFile, "unset keys keep defaults")
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := loadConfig(writeFile(t, dir, "bad.yaml", "debounce: [1, 2\n"))
	assert.ErrorContains(t, err, "parsing config")

	_, err = loadConfig(writeFile(t, dir, "neg.yaml", "debounce: -5ms\n"))
	assert.ErrorContains(t, err, "negative debounce")
}

// Not parallel: override reads the package-level flag variables.
func TestConfig_FlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringVar(&flagQueriesDir, "queries-dir", "", "")
	fs.StringVar(&flagRulesDir, "rules-dir", "", "")
	fs.StringVar(&flagQueryFile, "query-file", "", "")
	fs.StringVar(&flagLogLevel, "log-level", "warn", "")
	fs.DurationVar(&flagDebounce, "debounce", 0, "")
	require.NoError(t, fs.Parse([]string{"--queries-dir", "/flag/queries", "--debounce", "5ms"}))

	c := Config{QueriesDir: "/file/queries", RulesDir: "/file/rules", LogLevel: "info", Debounce: time.Second}
	c.override(fs)

	assert.Equal(t, "/flag/queries", c.QueriesDir)
	assert.Equal(t, "/file/rules", c.RulesDir, "unset flags keep file values")
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5*time.Millisecond, c.Debounce)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelWarn, true},
		{"loud", 0, false},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("yaml"), "invalid format")
}

// --- Selections ---

func TestParseSelection(t *testing.T) {
	t.Parallel()

	sel, err := parseSelection("4-9")
	require.NoError(t, err)
	assert.Equal(t, scopelight.Selection{A: 4, B: 9}, sel)

	sel, err = parseSelection("9-4")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), sel.Begin())

	for _, bad := range []string{"4", "a-9", "4-", "-1-2"} {
		_, err := parseSelection(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLineCol(t *testing.T) {
	t.Parallel()

	line, col, err := parseLineCol("3:14")
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.Equal(t, 14, col)

	for _, bad := range []string{"3", "0:1", "1:0", "x:1", "1:y"} {
		_, _, err := parseLineCol(bad)
		assert.Error(t, err, bad)
	}
}

func TestSelectionsFor(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "a.py", "x = 1\nprint(x)\n")

	sels, err := selectionsFor(path, []uint{3}, []string{"0-1"}, []string{"2:7"})
	require.NoError(t, err)
	assert.Equal(t, []scopelight.Selection{
		scopelight.Caret(3),
		{A: 0, B: 1},
		scopelight.Caret(12),
	}, sels)

	_, err = selectionsFor(path, nil, nil, []string{"9:1"})
	assert.ErrorContains(t, err, "has 3 lines")

	// Unreadable files are left to the highlight pass.
	sels, err = selectionsFor(filepath.Join(t.TempDir(), "gone.py"), []uint{1}, nil, []string{"1:1"})
	require.NoError(t, err)
	assert.Equal(t, []scopelight.Selection{scopelight.Caret(1)}, sels)
}

// --- Output ---

func highlightTempFile(t *testing.T) scopelight.FileResult {
	t.Helper()
	src := "def f(a, b):\n    return g(a, b)\n"
	path := writeFile(t, t.TempDir(), "calc.py", src)

	e, err := scopelight.New()
	require.NoError(t, err)
	results, err := e.HighlightFiles(context.Background(), []scopelight.FileRequest{
		{Path: path, Selections: []scopelight.Selection{scopelight.Caret(26)}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func TestToCLIFile(t *testing.T) {
	t.Parallel()
	got := toCLIFile(highlightTempFile(t))

	assert.Equal(t, "python", got.Language)
	require.Len(t, got.Regions, 2)
	assert.Equal(t, CLIRegion{Layer: "caller", Start: 24, End: 25, Line: 2, Col: 12, Text: "g"}, got.Regions[0])
	assert.Equal(t, CLIRegion{Layer: "references", Start: 6, End: 7, Line: 1, Col: 7, Text: "a"}, got.Regions[1])
}

func TestToCLIFile_Error(t *testing.T) {
	t.Parallel()
	got := toCLIFile(scopelight.FileResult{Path: "x.py", Err: os.ErrNotExist})
	assert.Equal(t, os.ErrNotExist.Error(), got.Error)
	assert.NotNil(t, got.Regions)
	assert.Empty(t, got.Regions)
}

func TestWriteResult(t *testing.T) {
	t.Parallel()
	files := []CLIFileHighlights{toCLIFile(highlightTempFile(t)), {File: "notes.txt", Skipped: "unsupported file type", Regions: []CLIRegion{}}}
	result := CLIResult{Command: "highlight", Results: files}

	var text bytes.Buffer
	require.NoError(t, writeResult(&text, "text", result))
	assert.Contains(t, text.String(), "LAYER")
	assert.Contains(t, text.String(), `caller`)
	assert.Contains(t, text.String(), `"g"`)
	assert.Contains(t, text.String(), "unsupported file type")

	var js bytes.Buffer
	require.NoError(t, writeResult(&js, "json", result))
	var decoded struct {
		Command string              `json:"command"`
		Results []CLIFileHighlights `json:"results"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "highlight", decoded.Command)
	assert.Equal(t, files, decoded.Results)

	assert.Error(t, writeResultText(&text, CLIResult{Results: 42}))
}

// --- Languages ---

func TestDescribeLanguages(t *testing.T) {
	t.Parallel()
	e, err := scopelight.New()
	require.NoError(t, err)

	langs, err := describeLanguages(e)
	require.NoError(t, err)
	require.Len(t, langs, 10)

	byName := make(map[string]CLILanguage)
	for _, l := range langs {
		byName[l.Language] = l
	}
	assert.True(t, byName["python"].Queries)
	assert.False(t, byName["python"].Rules)
	assert.Contains(t, byName["python"].Extensions, ".py")
	assert.True(t, byName["go"].Rules)
	for _, lang := range []string{"cpp", "java", "php", "ruby"} {
		assert.True(t, byName[lang].Queries, lang)
		assert.NotEmpty(t, byName[lang].Fragments, lang)
	}

	var names []string
	for _, f := range byName["python"].Fragments {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "assignment")

	var out bytes.Buffer
	formatLanguagesText(&out, langs)
	assert.Contains(t, out.String(), "LANGUAGE")
	assert.Contains(t, out.String(), "python")
}

func TestFragmentSummary(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "-", fragmentSummary(nil))
	assert.Equal(t, "assignment walrus(-(named_expression)) odd(-)", fragmentSummary([]CLIFragment{
		{Name: "assignment", Supported: true},
		{Name: "walrus", Missing: []string{"(named_expression)"}},
		{Name: "odd", Reason: "impossible pattern"},
	}))
}
