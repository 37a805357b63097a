package runtime

import (
	"bufio"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Fragment is an optional query pattern group appended to a base query only
// when the grammar supports it.
type Fragment struct {
	Name string
	Text string
}

// ProbeOutcome records whether a fragment can be used with a grammar.
type ProbeOutcome struct {
	Language  string
	Fragment  string
	Supported bool
	// Missing lists node types ("(name)") and fields ("name:") absent from
	// the grammar.
	Missing []string
	// Reason is set when the vocabulary matched but the fragment still does
	// not compile, e.g. an impossible parent/child pattern.
	Reason string
}

// fragmentHeader starts a new fragment in an optional query file:
//
//	;; fragment: assignment
const fragmentHeader = ";; fragment:"

// ParseFragments splits an optional query file into named fragments. Text
// before the first header is ignored.
func ParseFragments(text string) []Fragment {
	var (
		out     []Fragment
		current *Fragment
		body    strings.Builder
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(body.String())
		if current.Text != "" {
			out = append(out, *current)
		}
		body.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), fragmentHeader); ok {
			flush()
			current = &Fragment{Name: strings.TrimSpace(name)}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return out
}

// vocabulary is the set of named node types and field names of a grammar.
type vocabulary struct {
	nodes  map[string]bool
	fields map[string]bool
}

// maxFieldID bounds the field-name scan; grammars stay far below it.
const maxFieldID = 4096

func vocabularyOf(grammar *sitter.Language) vocabulary {
	v := vocabulary{nodes: make(map[string]bool), fields: make(map[string]bool)}
	count := grammar.SymbolCount()
	for i := uint32(0); i < count; i++ {
		sym := sitter.Symbol(i)
		if grammar.SymbolType(sym) != sitter.SymbolTypeRegular {
			continue
		}
		v.nodes[grammar.SymbolName(sym)] = true
	}
	// Field ids start at 1; the grammar returns "" past the last one.
	for id := 1; id < maxFieldID; id++ {
		name := grammar.FieldName(id)
		if name == "" {
			break
		}
		v.fields[name] = true
	}
	return v
}

var (
	patternStrings  = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	patternComments = regexp.MustCompile(`(?m);.*$`)
	patternNodes    = regexp.MustCompile(`\(\s*([A-Za-z_][A-Za-z0-9_]*)`)
	patternFields   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// missing returns the node types and fields a query fragment names that the
// grammar does not define. The wildcard "_" is always allowed.
func (v vocabulary) missing(fragment string) []string {
	text := patternComments.ReplaceAllString(fragment, "")
	text = patternStrings.ReplaceAllString(text, `""`)

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range patternNodes.FindAllStringSubmatch(text, -1) {
		if name := m[1]; name != "_" && !v.nodes[name] {
			add("(" + name + ")")
		}
	}
	for _, m := range patternFields.FindAllStringSubmatch(text, -1) {
		if name := m[1]; !v.fields[name] {
			add(name + ":")
		}
	}
	sort.Strings(out)
	return out
}

// probe validates a fragment against the grammar vocabulary, then compiles it
// on its own so structurally impossible patterns are rejected too.
func probe(language string, grammar *sitter.Language, vocab vocabulary, f Fragment) ProbeOutcome {
	outcome := ProbeOutcome{Language: language, Fragment: f.Name}
	if outcome.Missing = vocab.missing(f.Text); len(outcome.Missing) > 0 {
		return outcome
	}
	q, err := sitter.NewQuery([]byte(f.Text), grammar)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	q.Close()
	outcome.Supported = true
	return outcome
}
