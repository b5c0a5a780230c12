package frontend

import (
	"fmt"
	"regexp"
	"strings"

	"go.trai.ch/tsl/internal/core/domain"
)

var (
	interfaceDecl = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:declare[ \t]+)?interface[ \t]+([A-Za-z_$][\w$]*)`)
	aliasDecl     = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:declare[ \t]+)?type[ \t]+([A-Za-z_$][\w$]*)[ \t]*(?:<[^=\n]*>)?[ \t]*=[ \t]*([^;\n]+)`)
	functionDecl  = regexp.MustCompile(`\bfunction\b[ \t]*\*?[ \t]*([A-Za-z_$][\w$]*)[ \t]*(<[^>(\n]*>)?[ \t]*\(`)
	importDecl    = regexp.MustCompile(`(?m)^[ \t]*(?:import|export)\b(?:[^;'"]*?\bfrom)?[ \t]*['"]`)
	varDecl       = regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(let|const|var)\s+([A-Za-z_$][\w$]*)\s*(?::\s*((?:=>|[^=;])+?))?\s*(?:=\s*(.*?))?\s*;?\s*$`)
	paramName     = regexp.MustCompile(`^(\.\.\.)?\s*([A-Za-z_$][\w$]*)\s*(\?)?$`)
)

type param struct {
	name     string
	typ      string
	optional bool
	rest     bool
}

type function struct {
	name     string
	params   []param
	generics map[string]bool
	// open and close delimit the parameter list.
	open, close int
}

// checker runs the type rules over a scanned source.
type checker struct {
	src       *source
	sc        *scope
	functions map[string]*function
	diags     []domain.Diagnostic
}

func newChecker(src *source, strict bool) *checker {
	return &checker{
		src:       src,
		sc:        newScope(strict),
		functions: make(map[string]*function),
	}
}

// declare records interfaces, aliases and function signatures.
func (c *checker) declare() {
	sk := c.src.skeleton
	for _, m := range interfaceDecl.FindAllStringSubmatch(sk, -1) {
		c.sc.interfaces[m[1]] = true
	}
	for _, m := range aliasDecl.FindAllStringSubmatchIndex(sk, -1) {
		c.sc.aliases[sk[m[2]:m[3]]] = strings.TrimSpace(c.src.text[m[4]:m[5]])
	}
	for _, m := range functionDecl.FindAllStringSubmatchIndex(sk, -1) {
		open := m[1] - 1
		end := matchParen(sk, open)
		if end < 0 {
			continue
		}
		fn := &function{
			name:     sk[m[2]:m[3]],
			generics: make(map[string]bool),
			open:     open,
			close:    end,
		}
		if m[4] >= 0 {
			for _, g := range splitTopLevel(sk[m[4]+1:m[5]-1], ',') {
				name, _, _ := strings.Cut(strings.TrimSpace(g), " ")
				fn.generics[name] = true
			}
		}
		fn.params = c.params(open+1, end)
		if _, dup := c.functions[fn.name]; !dup {
			c.functions[fn.name] = fn
		}
	}
}

// params parses the parameter list between from and to.
func (c *checker) params(from, to int) []param {
	list := c.src.skeleton[from:to]
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []param
	for _, p := range splitParts(list, ',') {
		start := from + p.offset
		raw := c.src.text[start : start+len(p.text)]
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var pr param
		decl := raw
		if i := defaultIndex(decl); i >= 0 {
			decl = decl[:i]
			pr.optional = true
		}
		if i := topLevelIndex(decl, ':'); i >= 0 {
			pr.typ = strings.TrimSpace(decl[i+1:])
			decl = decl[:i]
		}
		decl = strings.TrimSpace(decl)
		if m := paramName.FindStringSubmatch(decl); m != nil {
			pr.rest = m[1] != ""
			pr.name = m[2]
			pr.optional = pr.optional || m[3] != ""
		} else {
			pr.name = decl
		}
		if pr.name == "this" {
			continue
		}
		if pr.typ == "" && !pr.optional && c.sc.strict {
			c.report(start+strings.Index(raw, strings.TrimLeft(raw, " \t\n")), codeImplicitAny,
				fmt.Sprintf("Parameter '%s' implicitly has an 'any' type", pr.name),
				&domain.Fix{Message: fmt.Sprintf("Add a type annotation to '%s'", pr.name), Example: pr.name + ": string"})
		}
		out = append(out, pr)
	}
	return out
}

// variables checks every single line declaration in source order.
func (c *checker) variables() {
	sk := c.src.skeleton
	seen := make(map[string]bool)
	for line, start := range c.src.lineStarts {
		end := len(sk)
		if line+1 < len(c.src.lineStarts) {
			end = c.src.lineStarts[line+1] - 1
		}
		m := varDecl.FindStringSubmatchIndex(sk[start:end])
		if m == nil {
			continue
		}
		at := func(group int) (string, int) {
			if m[2*group] < 0 {
				return "", -1
			}
			return c.src.text[start+m[2*group] : start+m[2*group+1]], start + m[2*group]
		}
		keyword, _ := at(1)
		name, namePos := at(2)
		declared, _ := at(3)
		init, initPos := at(4)
		declared = strings.TrimSpace(declared)
		init = strings.TrimSpace(init)

		if keyword != "var" && c.src.depth[line] == 0 {
			if seen[name] {
				c.report(namePos, codeRedeclared,
					fmt.Sprintf("Cannot redeclare block-scoped variable '%s'", name),
					&domain.Fix{Message: fmt.Sprintf("Rename '%s' or remove the duplicate declaration", name)})
			}
			seen[name] = true
		}

		if declared == "" {
			if init == "" && keyword != "const" && c.sc.strict {
				c.report(namePos, codeImplicitAny,
					fmt.Sprintf("Variable '%s' implicitly has an 'any' type", name),
					&domain.Fix{Message: fmt.Sprintf("Add a type annotation to '%s'", name), Example: fmt.Sprintf("%s %s: string;", keyword, name)})
			}
			c.sc.vars[name] = c.sc.infer(init)
			continue
		}

		if init != "" {
			actual := c.sc.infer(init)
			if !c.sc.assignable(declared, actual, nil) {
				c.report(initPos, codeVarTypeMismatch,
					fmt.Sprintf("Variable '%s' expects type '%s' but got '%s'", name, declared, actual),
					&domain.Fix{
						Message: fmt.Sprintf("Change the value of '%s' to type '%s'", name, declared),
						Example: fmt.Sprintf("%s %s: %s = %s;", keyword, name, declared, c.sc.defaultValue(declared)),
					})
			}
		}
		c.sc.vars[name] = c.sc.classify(declared)
	}
}

// calls checks the arguments of calls to declared functions.
func (c *checker) calls() {
	if len(c.functions) == 0 {
		return
	}
	sk := c.src.skeleton
	names := make([]string, 0, len(c.functions))
	for name := range c.functions {
		names = append(names, regexp.QuoteMeta(name))
	}
	call := regexp.MustCompile(`(^|[^\w$.])(` + strings.Join(names, "|") + `)\s*\(`)

	for _, m := range call.FindAllStringSubmatchIndex(sk, -1) {
		fn := c.functions[sk[m[4]:m[5]]]
		open := m[1] - 1
		if open == fn.open || precededByFunction(sk, m[4]) {
			continue
		}
		end := matchParen(sk, open)
		if end < 0 {
			continue
		}
		args := sk[open+1 : end]
		if strings.TrimSpace(args) == "" {
			continue
		}
		for i, a := range splitParts(args, ',') {
			if i >= len(fn.params) || fn.params[i].rest {
				break
			}
			p := fn.params[i]
			if p.typ == "" {
				continue
			}
			actual := c.sc.infer(a.text)
			if c.sc.assignable(p.typ, actual, fn.generics) {
				continue
			}
			pos := open + 1 + a.offset + len(a.text) - len(strings.TrimLeft(a.text, " \t\n"))
			c.report(pos, codeArgTypeMismatch,
				fmt.Sprintf("Argument %d of '%s' expects type '%s' but got '%s'", i+1, fn.name, p.typ, actual),
				&domain.Fix{
					Message: fmt.Sprintf("Change the argument to type '%s'", p.typ),
					Example: fmt.Sprintf("%s(%s)", fn.name, c.sc.defaultValue(p.typ)),
				})
		}
	}
}

// imports returns the relative module specifiers in order of appearance.
func (c *checker) imports() []string {
	sk := c.src.skeleton
	var out []string
	seen := make(map[string]bool)
	for _, m := range importDecl.FindAllStringIndex(sk, -1) {
		q := m[1] - 1
		end := strings.IndexByte(sk[q+1:], sk[q])
		if end < 0 {
			continue
		}
		spec := c.src.text[q+1 : q+1+end]
		if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
			continue
		}
		if !seen[spec] {
			seen[spec] = true
			out = append(out, spec)
		}
	}
	return out
}

func (c *checker) report(pos int, code, msg string, fix *domain.Fix) {
	line, col := c.src.position(pos)
	c.diags = append(c.diags, domain.Diagnostic{
		Message:  msg,
		Line:     line,
		Column:   col,
		Severity: domain.SeverityError,
		Code:     code,
		Fix:      fix,
	})
}

// matchParen returns the offset of the parenthesis closing the one at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// defaultIndex returns the offset of a top level default value '=' in a parameter, or -1.
func defaultIndex(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			depth--
		case '>':
			if i > 0 && s[i-1] != '=' {
				depth--
			}
		case '=':
			next := byte(0)
			if i+1 < len(s) {
				next = s[i+1]
			}
			if depth == 0 && next != '>' && next != '=' {
				return i
			}
		}
	}
	return -1
}

func precededByFunction(s string, pos int) bool {
	return strings.HasSuffix(strings.TrimRight(s[:pos], " \t*"), "function")
}
