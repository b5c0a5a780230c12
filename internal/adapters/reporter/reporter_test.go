package reporter_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"go.trai.ch/tsl/internal/adapters/reporter"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
)

func mismatch() ports.UnitReport {
	return ports.UnitReport{
		Path:   "src/a.ts",
		Source: "let count: number = \"one\";\nadd(1, 2);\n",
		Result: domain.FrontendResult{
			Diagnostics: []domain.Diagnostic{{
				Message:  "Variable 'count' expects type 'number' but got 'string'",
				Line:     1,
				Column:   21,
				Severity: domain.SeverityError,
				Code:     "TS-203",
				Fix: &domain.Fix{
					Message: "Change the value of 'count' to type 'number'",
					Example: "let count: number = 0;",
				},
			}},
		},
	}
}

func TestReporter_Report(t *testing.T) {
	tests := []struct {
		name       string
		units      []ports.UnitReport
		goldenName string
	}{
		{
			name:       "type mismatch with fix",
			units:      []ports.UnitReport{mismatch()},
			goldenName: "report_mismatch",
		},
		{
			name: "caret keeps tabs",
			units: []ports.UnitReport{{
				Path:   "src/b.ts",
				Source: "function f() {\n\tlet x;\n}\n",
				Result: domain.FrontendResult{
					Diagnostics: []domain.Diagnostic{{
						Message:  "Variable 'x' implicitly has an 'any' type",
						Line:     2,
						Column:   6,
						Severity: domain.SeverityError,
						Code:     "TS-004",
					}},
				},
			}},
			goldenName: "report_tabs",
		},
		{
			name: "unit error and out of range line",
			units: []ports.UnitReport{
				{Path: "src/missing.ts", Err: errors.New("source file not found")},
				{
					Path:   "src/c.ts",
					Source: "let a = 1;\n",
					Result: domain.FrontendResult{
						Success: true,
						Diagnostics: []domain.Diagnostic{{
							Message:  "unused variable",
							Line:     9,
							Column:   1,
							Severity: domain.SeverityWarning,
						}},
					},
				},
				{Path: "src/ok.ts", Source: "let b = 2;\n", Result: domain.FrontendResult{Success: true}},
			},
			goldenName: "report_unit_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reporter.New(&buf, termenv.Ascii).Report(tt.units)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestReporter_Summary(t *testing.T) {
	ok := ports.UnitReport{Path: "src/ok.ts", Result: domain.FrontendResult{Success: true}}
	twoErrors := mismatch()
	twoErrors.Result.Diagnostics = append(twoErrors.Result.Diagnostics, twoErrors.Result.Diagnostics[0])

	tests := []struct {
		name       string
		kind       domain.TaskKind
		units      []ports.UnitReport
		goldenName string
	}{
		{
			name:       "compiled",
			kind:       domain.KindCompile,
			units:      []ports.UnitReport{ok, ok},
			goldenName: "summary_compiled",
		},
		{
			name:       "checked single file",
			kind:       domain.KindCheck,
			units:      []ports.UnitReport{ok},
			goldenName: "summary_checked",
		},
		{
			name: "failures",
			kind: domain.KindCheck,
			units: []ports.UnitReport{
				twoErrors,
				{Path: "src/missing.ts", Err: errors.New("source file not found")},
				ok,
			},
			goldenName: "summary_failures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reporter.New(&buf, termenv.Ascii).Summary(tt.kind, tt.units)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}
