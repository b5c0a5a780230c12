package frontend

import (
	"regexp"
	"strings"
)

// Literal categories produced by inference.
const (
	typeAny       = "any"
	typeString    = "string"
	typeNumber    = "number"
	typeBoolean   = "boolean"
	typeNull      = "null"
	typeUndefined = "undefined"
	typeArray     = "array"
	typeObject    = "object"
	typeFunction  = "function"
)

var (
	numberLit  = regexp.MustCompile(`^-?(?:0[xX][0-9a-fA-F_]+|0[bB][01_]+|\d[\d_]*(?:\.\d+)?(?:[eE][+-]?\d+)?|\.\d+)n?$`)
	identLit   = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	arrowStart = regexp.MustCompile(`^(?:async\s+)?(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*(?::[^=]+)?=>`)
)

// scope holds the named types and variables visible to the checker.
type scope struct {
	interfaces map[string]bool
	aliases    map[string]string
	vars       map[string]string
	strict     bool
}

func newScope(strict bool) *scope {
	return &scope{
		interfaces: make(map[string]bool),
		aliases:    make(map[string]string),
		vars:       make(map[string]string),
		strict:     strict,
	}
}

// infer returns the category of an initializer expression taken from the skeleton.
func (sc *scope) infer(expr string) string {
	expr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(expr), ";"))
	switch {
	case expr == "":
		return typeAny
	case expr[0] == '"' || expr[0] == '\'' || expr[0] == '`':
		return typeString
	case numberLit.MatchString(expr):
		return typeNumber
	case expr == "true" || expr == "false":
		return typeBoolean
	case expr == "null":
		return typeNull
	case expr == "undefined" || expr == "void 0":
		return typeUndefined
	case expr[0] == '[':
		return typeArray
	case expr[0] == '{':
		return typeObject
	case strings.HasPrefix(expr, "function") || strings.HasPrefix(expr, "async function") || arrowStart.MatchString(expr):
		return typeFunction
	case strings.HasPrefix(expr, "new "):
		return typeObject
	case identLit.MatchString(expr):
		if t, ok := sc.vars[expr]; ok {
			return t
		}
	}
	return typeAny
}

// classify maps a declared type to the category compared against inferred values.
func (sc *scope) classify(declared string) string {
	return sc.classifyDepth(strings.TrimSpace(declared), 0)
}

func (sc *scope) classifyDepth(t string, depth int) string {
	switch {
	case depth > 8:
		return typeAny
	case t == typeString || t == typeNumber || t == typeBoolean || t == typeNull || t == typeUndefined:
		return t
	case isArrayType(t):
		return typeArray
	case isFunctionType(t):
		return typeFunction
	case sc.interfaces[t] || isObjectType(t):
		return typeObject
	}
	if alias, ok := sc.aliases[t]; ok {
		return sc.classifyDepth(strings.TrimSpace(alias), depth+1)
	}
	return typeAny
}

// assignable reports whether a value of category actual fits the declared type.
// generics names the type parameters in scope.
func (sc *scope) assignable(declared, actual string, generics map[string]bool) bool {
	return sc.assignableDepth(strings.TrimSpace(declared), actual, generics, 0)
}

//nolint:cyclop // one case per type form
func (sc *scope) assignableDepth(t, actual string, generics map[string]bool, depth int) bool {
	if actual == typeAny || t == "" || depth > 8 {
		return true
	}
	if parts := splitTopLevel(t, '|'); len(parts) > 1 {
		for _, p := range parts {
			if sc.assignableDepth(strings.TrimSpace(p), actual, generics, depth+1) {
				return true
			}
		}
		return false
	}
	if len(splitTopLevel(t, '&')) > 1 {
		return true
	}
	if (actual == typeNull || actual == typeUndefined) && !sc.strict {
		return true
	}
	if inner, ok := unwrapParens(t); ok {
		return sc.assignableDepth(inner, actual, generics, depth+1)
	}

	switch {
	case t == "any" || t == "unknown" || generics[t]:
		return true
	case sc.interfaces[t]:
		return actual == typeObject
	}
	if alias, ok := sc.aliases[t]; ok {
		return sc.assignableDepth(strings.TrimSpace(alias), actual, generics, depth+1)
	}

	switch {
	case isTypeParameter(t):
		return true
	case t == "never":
		return false
	case isArrayType(t):
		return actual == typeArray
	case isFunctionType(t):
		return actual == typeFunction
	case isObjectType(t):
		return actual == typeObject || actual == typeArray || actual == typeFunction
	case t == typeString || t[0] == '"' || t[0] == '\'' || t[0] == '`':
		return actual == typeString
	case t == typeNumber || numberLit.MatchString(t):
		return actual == typeNumber
	case t == typeBoolean || t == "true" || t == "false":
		return actual == typeBoolean
	case t == typeNull:
		return actual == typeNull
	case t == typeUndefined || t == "void":
		return actual == typeUndefined
	}
	// Types declared elsewhere are not known here.
	return true
}

func isArrayType(t string) bool {
	return strings.HasSuffix(t, "[]") ||
		strings.HasPrefix(t, "Array<") ||
		strings.HasPrefix(t, "ReadonlyArray<") ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

func isFunctionType(t string) bool {
	return t == "Function" || (strings.HasPrefix(t, "(") && strings.Contains(t, "=>"))
}

func isObjectType(t string) bool {
	return t == "object" || t == "Object" || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "Record<")
}

// isTypeParameter treats an undeclared single upper case letter as a type parameter.
func isTypeParameter(t string) bool {
	return len(t) == 1 && t[0] >= 'A' && t[0] <= 'Z'
}

func unwrapParens(t string) (string, bool) {
	if len(t) < 2 || t[0] != '(' || t[len(t)-1] != ')' || strings.Contains(t, "=>") {
		return "", false
	}
	depth := 0
	for i := range len(t) - 1 {
		switch t[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			return "", false
		}
	}
	return strings.TrimSpace(t[1 : len(t)-1]), true
}

// defaultValue returns a literal of the declared type for fix examples.
func (sc *scope) defaultValue(declared string) string {
	t := strings.TrimSpace(declared)
	for range 8 {
		if alias, ok := sc.aliases[t]; ok {
			t = strings.TrimSpace(alias)
		}
		parts := splitTopLevel(t, '|')
		if len(parts) == 1 {
			break
		}
		t = strings.TrimSpace(parts[0])
	}
	switch sc.classify(t) {
	case typeString:
		return `""`
	case typeNumber:
		return "0"
	case typeBoolean:
		return "false"
	case typeNull:
		return "null"
	case typeArray:
		return "[]"
	case typeObject:
		return "{}"
	case typeFunction:
		return "() => {}"
	}
	return "undefined"
}

// part is a slice of a list with its offset in the enclosing text.
type part struct {
	text   string
	offset int
}

// splitTopLevel splits s on sep outside of brackets, braces, parentheses and angle brackets.
func splitTopLevel(s string, sep byte) []string {
	parts := splitParts(s, sep)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.text
	}
	return out
}

func splitParts(s string, sep byte) []part {
	var parts []part
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '(' || c == '[' || c == '{' || c == '<':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '>' && (i == 0 || s[i-1] != '='):
			depth--
		case c == sep && depth == 0:
			parts = append(parts, part{text: s[start:i], offset: start})
			start = i + 1
		}
	}
	return append(parts, part{text: s[start:], offset: start})
}

// topLevelIndex returns the first index of c in s outside nested pairs, or -1.
func topLevelIndex(s string, c byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			depth--
		case '>':
			if i == 0 || s[i-1] != '=' {
				depth--
			}
		default:
			if s[i] == c && depth == 0 {
				return i
			}
		}
	}
	return -1
}
