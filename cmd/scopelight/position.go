package main

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// lineIndex maps between byte offsets and line-based positions in one
// source snapshot.
type lineIndex struct {
	src    []byte
	starts []uint32 // byte offset of each line start
}

func newLineIndex(src []byte) *lineIndex {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return &lineIndex{src: src, starts: starts}
}

// line returns the 0-based line containing off. Offsets past the end clamp
// to the last line.
func (ix *lineIndex) line(off uint32) int {
	return sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > off }) - 1
}

// lineEnd is the offset of the line's terminating newline, or len(src).
func (ix *lineIndex) lineEnd(line int) uint32 {
	if line+1 < len(ix.starts) {
		return ix.starts[line+1] - 1
	}
	return uint32(len(ix.src))
}

func (ix *lineIndex) clamp(off uint32) uint32 {
	return min(off, uint32(len(ix.src)))
}

// lineCol returns the 1-based line and 1-based byte column of off.
func (ix *lineIndex) lineCol(off uint32) (int, int) {
	off = ix.clamp(off)
	l := ix.line(off)
	return l + 1, int(off-ix.starts[l]) + 1
}

// offsetAt converts a 1-based line and byte column to an offset, clamping
// the column to the line's length. ok is false for lines out of range.
func (ix *lineIndex) offsetAt(line, col int) (uint32, bool) {
	if line < 1 || line > len(ix.starts) || col < 1 {
		return 0, false
	}
	start := ix.starts[line-1]
	return min(start+uint32(col-1), ix.lineEnd(line-1)), true
}

// position converts off to an LSP position, whose character counts UTF-16
// code units.
func (ix *lineIndex) position(off uint32) protocol.Position {
	off = ix.clamp(off)
	l := ix.line(off)
	var units uint32
	for p := ix.starts[l]; p < off; {
		r, size := utf8.DecodeRune(ix.src[p:])
		units += uint32(utf16.RuneLen(r))
		p += uint32(size)
	}
	return protocol.Position{Line: uint32(l), Character: units}
}

// offset converts an LSP position back to a byte offset. Characters past the
// end of the line clamp to the line end; lines past the end clamp to the end
// of the source.
func (ix *lineIndex) offset(pos protocol.Position) uint32 {
	if int(pos.Line) >= len(ix.starts) {
		return uint32(len(ix.src))
	}
	p, end := ix.starts[pos.Line], ix.lineEnd(int(pos.Line))
	var units uint32
	for p < end && units < pos.Character {
		r, size := utf8.DecodeRune(ix.src[p:])
		units += uint32(utf16.RuneLen(r))
		p += uint32(size)
	}
	return p
}

func (ix *lineIndex) lspRange(start, end uint32) protocol.Range {
	return protocol.Range{Start: ix.position(start), End: ix.position(end)}
}
