package main

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jward/scopelight"
)

var (
	callerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	parensStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	contentsStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236"))

	referencesStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("86"))

	caretStyle = lipgloss.NewStyle().Reverse(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// layerStyles in paint order: later layers win where regions overlap.
var layerStyles = []struct {
	layer scopelight.Layer
	style lipgloss.Style
}{
	{scopelight.LayerArgumentContents, contentsStyle},
	{scopelight.LayerArgumentParens, parensStyle},
	{scopelight.LayerCaller, callerStyle},
	{scopelight.LayerReferences, referencesStyle},
}

// noCaret disables the caret marker in renderSource.
const noCaret = ^uint32(0)

// renderSource styles src with the highlight layers and marks the caret.
// Each line is rendered separately so multi-line regions keep their line
// structure.
func renderSource(src []byte, h scopelight.Highlights, caret uint32) string {
	paint := make([]int, len(src)+1) // index into layerStyles, -1 for none
	for i := range paint {
		paint[i] = -1
	}
	for i, ls := range layerStyles {
		for _, r := range h.Layer(ls.layer) {
			for p := r.Start; p < r.End && int(p) < len(src); p++ {
				paint[p] = i
			}
		}
	}

	var out strings.Builder
	lineStart := 0
	for i := 0; i <= len(src); i++ {
		if i < len(src) && src[i] != '\n' {
			continue
		}
		renderLine(&out, src, paint, lineStart, i, caret)
		if i < len(src) {
			out.WriteByte('\n')
		}
		lineStart = i + 1
	}
	return out.String()
}

// renderLine writes src[start:end] as runs of equally styled bytes. A caret
// at end (the newline or end of source) is drawn as a styled space.
func renderLine(out *strings.Builder, src []byte, paint []int, start, end int, caret uint32) {
	for p := start; p < end; {
		if uint32(p) == caret {
			_, size := utf8.DecodeRune(src[p:end])
			out.WriteString(caretStyle.Render(string(src[p : p+size])))
			p += size
			continue
		}
		q := p + 1
		for q < end && paint[q] == paint[p] && uint32(q) != caret {
			q++
		}
		if paint[p] >= 0 {
			out.WriteString(layerStyles[paint[p]].style.Render(string(src[p:q])))
		} else {
			out.Write(src[p:q])
		}
		p = q
	}
	if uint32(end) == caret {
		out.WriteString(caretStyle.Render(" "))
	}
}
