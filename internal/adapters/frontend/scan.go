package frontend

import (
	"fmt"
	"sort"
	"strings"

	"go.trai.ch/tsl/internal/core/domain"
)

// Diagnostic codes.
const (
	codeImplicitAny     = "TS-004"
	codeArgTypeMismatch = "TS-101"
	codeRedeclared      = "TS-202"
	codeVarTypeMismatch = "TS-203"
	codeSyntax          = "TS-501"
	codeUnexpectedToken = "TS-502"
)

// source is a scanned program. skeleton has the length of text with comments
// and string contents blanked to spaces, so structural patterns never match
// inside them and offsets carry over to text unchanged.
type source struct {
	text       string
	skeleton   string
	lineStarts []int
	depth      []int
	diags      []domain.Diagnostic
}

type opener struct {
	ch  byte
	pos int
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

func scan(text string) *source {
	s := &source{text: text, lineStarts: []int{0}}
	sk := []byte(text)
	var stack []opener

	braces := func() int {
		n := 0
		for _, o := range stack {
			if o.ch == '{' {
				n++
			}
		}
		return n
	}
	s.depth = []int{0}

	blank := func(from, to int) {
		for j := from; j < to && j < len(sk); j++ {
			if sk[j] != '\n' {
				sk[j] = ' '
			}
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			s.lineStarts = append(s.lineStarts, i+1)
			s.depth = append(s.depth, braces())

		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			end := i
			for end < len(text) && text[end] != '\n' {
				end++
			}
			blank(i, end)
			i = end - 1

		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				s.report(i, codeSyntax, "Unterminated comment", nil)
				end = len(text)
			} else {
				end += i + 4
			}
			s.newlines(i, end)
			blank(i, end)
			i = end - 1

		case c == '"' || c == '\'' || c == '`':
			end := s.stringEnd(i)
			blank(i+1, end-1)
			i = end - 1

		case c == '(' || c == '[' || c == '{':
			stack = append(stack, opener{ch: c, pos: i})

		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 {
				s.report(i, codeUnexpectedToken, fmt.Sprintf("Unexpected token '%c'", c), nil)
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.ch != closers[c] {
				s.report(i, codeSyntax, fmt.Sprintf("Expected '%c' but found '%c'", closing(top.ch), c), nil)
			}
		}
	}

	for _, o := range stack {
		s.report(o.pos, codeSyntax, fmt.Sprintf("'%c' was never closed", o.ch), &domain.Fix{
			Message: fmt.Sprintf("Add the matching '%c'", closing(o.ch)),
		})
	}

	s.skeleton = string(sk)
	sort.SliceStable(s.diags, func(a, b int) bool {
		da, db := s.diags[a], s.diags[b]
		if da.Line != db.Line {
			return da.Line < db.Line
		}
		return da.Column < db.Column
	})
	return s
}

// stringEnd returns the offset after the literal opened at i. Quote and
// apostrophe literals end at a newline; template literals may span lines.
func (s *source) stringEnd(i int) int {
	q := s.text[i]
	for j := i + 1; j < len(s.text); j++ {
		switch s.text[j] {
		case '\\':
			j++
		case q:
			if q == '`' {
				s.newlines(i, j)
			}
			return j + 1
		case '\n':
			if q != '`' {
				s.report(i, codeSyntax, "Unterminated string literal", nil)
				return j
			}
		}
	}
	s.report(i, codeSyntax, "Unterminated string literal", nil)
	if q == '`' {
		s.newlines(i, len(s.text))
	}
	return len(s.text)
}

// newlines records the line starts inside a region skipped by the main loop.
func (s *source) newlines(from, to int) {
	for j := from; j < to && j < len(s.text); j++ {
		if s.text[j] == '\n' {
			s.lineStarts = append(s.lineStarts, j+1)
			s.depth = append(s.depth, s.depth[len(s.depth)-1])
		}
	}
}

func (s *source) report(pos int, code, msg string, fix *domain.Fix) {
	line, col := s.position(pos)
	s.diags = append(s.diags, domain.Diagnostic{
		Message:  msg,
		Line:     line,
		Column:   col,
		Severity: domain.SeverityError,
		Code:     code,
		Fix:      fix,
	})
}

// position converts an offset to a 1-based line and column.
func (s *source) position(pos int) (int, int) {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > pos })
	return line, pos - s.lineStarts[line-1] + 1
}

func closing(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}
