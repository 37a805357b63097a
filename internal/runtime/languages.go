package runtime

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".py":   "python",
	".pyi":  "python",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".java": "java",
	".php":  "php",
	".rb":   "ruby",
}

// scopeToLanguage maps editor scope names and LSP language identifiers to
// canonical language names. Canonical names map to themselves via
// LanguageForScope and are not listed here.
var scopeToLanguage = map[string]string{
	"source.go":       "go",
	"source.ts":       "typescript",
	"source.tsx":      "typescript",
	"source.js":       "javascript",
	"source.jsx":      "javascript",
	"source.python":   "python",
	"source.rust":     "rust",
	"source.c":        "c",
	"source.c++":      "cpp",
	"source.java":     "java",
	"source.php":      "php",
	"embedding.php":   "php",
	"source.ruby":     "ruby",
	"golang":          "go",
	"javascriptreact": "javascript",
	"typescriptreact": "typescript",
	"py":              "python",
	"rs":              "rust",
	"c++":             "cpp",
	"rb":              "ruby",
}

// langToGrammar maps language names to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"go":         golang.GetLanguage(),
			"typescript": ts.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"python":     python.GetLanguage(),
			"rust":       rust.GetLanguage(),
			"c":          c.GetLanguage(),
			"cpp":        cpp.GetLanguage(),
			"java":       java.GetLanguage(),
			"php":        php.GetLanguage(),
			"ruby":       ruby.GetLanguage(),
		}
	})
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// LanguageForScope resolves a canonical name, an editor scope name such as
// "source.python" or an LSP language id to a canonical language name.
// Returns ("", false) if no grammar is registered for it.
func LanguageForScope(scope string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(scope))
	if lang, ok := scopeToLanguage[key]; ok {
		key = lang
	}
	initGrammars()
	if _, ok := langToGrammar[key]; !ok {
		return "", false
	}
	return key, true
}

// ParserForLanguage returns the tree-sitter Language for a canonical language
// name. Returns (nil, false) if the language is not supported.
func ParserForLanguage(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// Languages returns every canonical language name with a grammar, sorted.
func Languages() []string {
	initGrammars()
	out := make([]string, 0, len(langToGrammar))
	for name := range langToGrammar {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Extensions returns the file extensions mapped to lang, sorted.
func Extensions(lang string) []string {
	var out []string
	for ext, l := range extToLanguage {
		if l == lang {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}
