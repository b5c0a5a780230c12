package frontend

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"go.trai.ch/tsl/internal/core/domain"
)

const strictPrologue = `"use strict";`

var (
	functionHead  = regexp.MustCompile(`\bfunction\b[ \t]*\*?[ \t]*(?:[A-Za-z_$][\w$]*)?[ \t]*(<[^>(\n]*>)?[ \t]*\(`)
	arrowTail     = regexp.MustCompile(`\)([ \t]*:[^=;{}\n]*?)?[ \t]*=>`)
	varHead       = regexp.MustCompile(`\b(?:let|const|var)\s+[A-Za-z_$][\w$]*[ \t]*:`)
	typeImport    = regexp.MustCompile(`(?m)^[ \t]*(?:import|export)[ \t]+type\b`)
	declareStmt   = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?declare\b`)
	castExpr      = regexp.MustCompile(`[ \t]+as[ \t]+(?:const\b|[A-Za-z_$][\w$.]*(?:<[^<>\n]*>)?(?:\[\])*)`)
	typeArgs      = regexp.MustCompile(`\b[A-Za-z_$][\w$]*(<[\w$ ,.|\[\]]+>)\(`)
	moduleBraces  = regexp.MustCompile(`^[ \t]*(?:import|export)\b`)
	blockScoped   = regexp.MustCompile(`(^|[;{}(\s])(let|const)(\s)`)
	paramNameHead = regexp.MustCompile(`^\s*(?:\.\.\.)?\s*[A-Za-z_$][\w$]*`)
	useStrict     = regexp.MustCompile(`^\s*['"]use strict['"]`)
)

// edit replaces text[start:end] with repl.
type edit struct {
	start, end int
	repl       string
}

type emitter struct {
	src   *source
	edits []edit
}

// emit strips type syntax and lowers the result for opts.Target.
func emit(src *source, opts domain.Options) string {
	e := &emitter{src: src}
	e.declarations()
	e.functions()
	e.arrows()
	e.variables()
	e.casts()
	e.typeArguments()
	if opts.Target.LegacyScoping() {
		e.lowerScoping()
	}

	out := e.apply()
	prologue := opts.Strict && !useStrict.MatchString(out)
	if prologue {
		out = strictPrologue + "\n" + out
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if opts.SourceMap {
		out += sourceMap(src, prologue) + "\n"
	}
	return out
}

// remove blanks text[start:end], keeping its line breaks so lines map one to one.
func (e *emitter) remove(start, end int) {
	if start >= end {
		return
	}
	e.edits = append(e.edits, edit{start: start, end: end, repl: strings.Repeat("\n", strings.Count(e.src.text[start:end], "\n"))})
}

func (e *emitter) declarations() {
	sk := e.src.skeleton
	for _, m := range interfaceDecl.FindAllStringIndex(sk, -1) {
		open := strings.IndexByte(sk[m[1]:], '{')
		if open < 0 {
			continue
		}
		end := matchBrace(sk, m[1]+open)
		if end < 0 {
			continue
		}
		e.remove(m[0], trailingSemicolon(sk, end+1))
	}
	for _, re := range []*regexp.Regexp{aliasDecl, typeImport, declareStmt} {
		for _, m := range re.FindAllStringIndex(sk, -1) {
			e.remove(m[0], statementEnd(sk, m[0]))
		}
	}
}

func (e *emitter) functions() {
	sk := e.src.skeleton
	for _, m := range functionHead.FindAllStringSubmatchIndex(sk, -1) {
		if m[2] >= 0 {
			e.remove(m[2], m[3])
		}
		open := m[1] - 1
		end := matchParen(sk, open)
		if end < 0 {
			continue
		}
		e.params(open+1, end)

		i := skipSpace(sk, end+1)
		if i < len(sk) && sk[i] == ':' {
			stop := typeEnd(sk, i+1, func(j int) bool { return sk[j] == '{' || sk[j] == ';' })
			e.remove(end+1, trimRight(sk, end+1, stop))
		}
	}
}

func (e *emitter) arrows() {
	sk := e.src.skeleton
	for _, m := range arrowTail.FindAllStringSubmatchIndex(sk, -1) {
		if m[2] >= 0 {
			e.remove(m[2], m[3])
		}
		open := matchParenBack(sk, m[0])
		if open < 0 {
			continue
		}
		e.params(open+1, m[0])
	}
}

// params removes optional markers and annotations from a parameter list.
func (e *emitter) params(from, to int) {
	sk := e.src.skeleton
	for _, p := range splitParts(sk[from:to], ',') {
		start := from + p.offset
		decl := p.text
		if i := defaultIndex(decl); i >= 0 {
			decl = decl[:i]
		}
		declEnd := trimRight(sk, start, start+len(decl))
		colon := topLevelIndex(decl, ':')
		if head := paramNameHead.FindStringIndex(decl); head != nil {
			if colon >= 0 || strings.HasPrefix(strings.TrimSpace(decl[head[1]:]), "?") {
				e.remove(start+head[1], declEnd)
			}
			continue
		}
		if colon >= 0 {
			e.remove(start+colon, declEnd)
		}
	}
}

func (e *emitter) variables() {
	sk := e.src.skeleton
	for _, m := range varHead.FindAllStringIndex(sk, -1) {
		colon := m[1] - 1
		nameEnd := trimRight(sk, m[0], colon)
		stop := typeEnd(sk, colon+1, func(j int) bool {
			switch sk[j] {
			case ';', '\n', ',', ')':
				return true
			case '=':
				return j+1 >= len(sk) || sk[j+1] != '>'
			}
			return false
		})
		e.remove(nameEnd, trimRight(sk, nameEnd, stop))
	}
}

func (e *emitter) casts() {
	sk := e.src.skeleton
	for _, m := range castExpr.FindAllStringIndex(sk, -1) {
		line := e.lineOf(m[0])
		if moduleBraces.MatchString(sk[e.src.lineStarts[line]:m[0]]) {
			continue
		}
		e.remove(m[0], m[1])
	}
}

func (e *emitter) typeArguments() {
	for _, m := range typeArgs.FindAllStringSubmatchIndex(e.src.skeleton, -1) {
		e.remove(m[2], m[3])
	}
}

func (e *emitter) lowerScoping() {
	for _, m := range blockScoped.FindAllStringSubmatchIndex(e.src.skeleton, -1) {
		e.edits = append(e.edits, edit{start: m[4], end: m[5], repl: "var"})
	}
}

// apply rewrites the text. An edit overlapping an earlier one is dropped;
// enclosing edits sort first.
func (e *emitter) apply() string {
	sort.SliceStable(e.edits, func(a, b int) bool {
		if e.edits[a].start != e.edits[b].start {
			return e.edits[a].start < e.edits[b].start
		}
		return e.edits[a].end > e.edits[b].end
	})

	var b strings.Builder
	b.Grow(len(e.src.text))
	pos := 0
	for _, ed := range e.edits {
		if ed.start < pos {
			continue
		}
		b.WriteString(e.src.text[pos:ed.start])
		b.WriteString(ed.repl)
		pos = ed.end
	}
	b.WriteString(e.src.text[pos:])
	return b.String()
}

// lineOf returns the zero based line containing pos.
func (e *emitter) lineOf(pos int) int {
	return sort.Search(len(e.src.lineStarts), func(i int) bool { return e.src.lineStarts[i] > pos }) - 1
}

// typeEnd scans a type starting at from and returns the first offset at
// nesting depth zero for which stop reports true.
func typeEnd(s string, from int, stop func(int) bool) int {
	depth := 0
	for i := from; i < len(s); i++ {
		c := s[i]
		if depth == 0 && stop(i) {
			// An object type literal opens with '{' before any other content.
			if c != '{' || strings.TrimSpace(s[from:i]) != "" {
				return i
			}
		}
		switch c {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			depth--
		case '>':
			if s[i-1] != '=' {
				depth--
			}
		}
		if depth < 0 {
			return i
		}
	}
	return len(s)
}

// statementEnd returns the offset after the statement starting at from.
func statementEnd(s string, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ';':
			if depth <= 0 {
				return i + 1
			}
		case '\n':
			if depth <= 0 {
				return i
			}
		}
	}
	return len(s)
}

func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchParenBack returns the offset of the parenthesis opening the one at closeAt, or -1.
func matchParenBack(s string, closeAt int) int {
	depth := 0
	for i := closeAt; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func trailingSemicolon(s string, i int) int {
	if j := skipSpace(s, i); j < len(s) && s[j] == ';' {
		return j + 1
	}
	return i
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// trimRight moves end back over whitespace, not past from.
func trimRight(s string, from, end int) int {
	for end > from && strings.ContainsRune(" \t\r\n", rune(s[end-1])) {
		end--
	}
	return end
}

type sourceMapV3 struct {
	Version  int      `json:"version"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// sourceMap returns an inline source map comment mapping each output line
// to the same source line.
func sourceMap(src *source, prologue bool) string {
	var m strings.Builder
	if prologue {
		m.WriteString(";")
	}
	for i := range src.lineStarts {
		if i == 0 {
			m.WriteString("AAAA")
			continue
		}
		m.WriteString(";AACA")
	}
	//nolint:errchkjson // fixed struct always encodes
	b, _ := json.Marshal(sourceMapV3{
		Version:  3,
		Sources:  []string{"input.ts"},
		Names:    []string{},
		Mappings: m.String(),
	})
	return "//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(b)
}
