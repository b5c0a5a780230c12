// Package frontend provides the bundled rule based TypeScript subset checker and emitter.
package frontend

import (
	"fmt"
	"sort"

	"go.trai.ch/tsl/internal/core/domain"
)

// Frontend checks and compiles a single source text. It holds no state
// between calls and is safe for concurrent use.
type Frontend struct{}

// New creates a Frontend.
func New() *Frontend {
	return &Frontend{}
}

// Run checks source and, for compile tasks, emits code. Internal failures are
// reported as an unsuccessful result.
func (f *Frontend) Run(kind domain.TaskKind, source string, opts domain.Options) (result domain.FrontendResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.Failed(codeSyntax, fmt.Sprintf("internal error: %v", r), 1, 1)
		}
	}()

	src := scan(source)
	if len(src.diags) > 0 {
		return domain.FrontendResult{Diagnostics: src.diags}
	}

	c := newChecker(src, opts.Strict)
	c.declare()
	c.variables()
	c.calls()
	sortDiagnostics(c.diags)

	result = domain.FrontendResult{
		Diagnostics: c.diags,
		Imports:     c.imports(),
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []domain.Diagnostic{}
	}
	result.Success = result.ErrorCount() == 0

	if kind == domain.KindCompile && result.Success && !opts.NoEmit {
		result.Code = emit(src, opts)
		result.Emitted = true
	}
	return result
}

func sortDiagnostics(diags []domain.Diagnostic) {
	sort.SliceStable(diags, func(a, b int) bool {
		if diags[a].Line != diags[b].Line {
			return diags[a].Line < diags[b].Line
		}
		return diags[a].Column < diags[b].Column
	})
}
