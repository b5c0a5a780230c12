// Package reporter renders diagnostics and run summaries for the terminal.
package reporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/tsl/internal/ui/output"
	"go.trai.ch/tsl/internal/ui/style"
)

var _ ports.Reporter = (*Reporter)(nil)

// Reporter writes diagnostics with a source excerpt and caret.
type Reporter struct {
	out *termenv.Output
}

// New creates a Reporter writing to w with the given color profile.
func New(w io.Writer, profile termenv.Profile) *Reporter {
	return &Reporter{out: output.NewWithProfile(w, profile)}
}

// Report renders every unit carrying an error or a diagnostic.
func (r *Reporter) Report(units []ports.UnitReport) {
	for _, u := range units {
		if u.Err != nil {
			r.line(r.paint(style.Cross+" "+u.Path, style.Error) + ": " + u.Err.Error())
			continue
		}
		lines := strings.Split(u.Source, "\n")
		for _, d := range u.Result.Diagnostics {
			r.diagnostic(u.Path, lines, d)
		}
	}
}

func (r *Reporter) diagnostic(path string, lines []string, d domain.Diagnostic) {
	color := style.Error
	if d.Severity == domain.SeverityWarning {
		color = style.Warning
	}

	head := fmt.Sprintf("%s:%d:%d", path, d.Line, d.Column)
	label := string(d.Severity)
	if d.Code != "" {
		label += " " + d.Code
	}
	r.line(r.paint(head, style.Accent) + " " + r.paint(label, color) + ": " + d.Message)

	if d.Line >= 1 && d.Line <= len(lines) {
		num := strconv.Itoa(d.Line)
		gutter := strings.Repeat(" ", len(num))
		src := strings.TrimRight(lines[d.Line-1], "\r")
		r.line(r.paint(" "+num+" "+style.Pipe, style.Muted) + " " + src)
		caret := caretPrefix(src, d.Column) + "^"
		r.line(r.paint(" "+gutter+" "+style.Pipe, style.Muted) + " " + r.paint(caret, color))
	}

	if d.Fix != nil {
		r.line("  " + r.paint("fix:", style.Success) + " " + d.Fix.Message)
		if d.Fix.Example != "" {
			r.line("       " + r.paint(d.Fix.Example, style.Code))
		}
	}
}

// Summary renders the closing line of a run.
func (r *Reporter) Summary(kind domain.TaskKind, units []ports.UnitReport) {
	errs, failed := 0, 0
	for _, u := range units {
		n := u.Result.ErrorCount()
		if u.Err != nil {
			n = 1
		}
		if n > 0 || (u.Err == nil && !u.Result.Success) {
			failed++
			errs += max(n, 1)
		}
	}

	if failed == 0 {
		verb := "checked"
		if kind == domain.KindCompile {
			verb = "compiled"
		}
		r.line(r.paint(fmt.Sprintf("%s %s %s", style.Check, plural(len(units), "file"), verb), style.Success))
		return
	}
	r.line(r.paint(fmt.Sprintf("%s %s in %s", style.Cross, plural(errs, "error"), plural(failed, "file")), style.Error))
}

func (r *Reporter) paint(s string, c lipgloss.Color) string {
	return output.Colorize(r.out, s, string(c))
}

func (r *Reporter) line(s string) {
	_, _ = r.out.WriteString(s + "\n")
}

// caretPrefix returns the padding placing a caret under column, keeping tabs
// so the caret lines up with the excerpt.
func caretPrefix(src string, column int) string {
	n := min(max(column-1, 0), len(src))
	var b strings.Builder
	for i := range n {
		if src[i] == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
