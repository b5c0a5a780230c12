package domain

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityError marks a diagnostic that fails the unit.
	SeverityError Severity = "error"
	// SeverityWarning marks an advisory diagnostic.
	SeverityWarning Severity = "warning"
)

// Fix is a suggested remedy attached to a diagnostic.
type Fix struct {
	Message string `json:"message"`
	Example string `json:"example,omitempty"`
}

// Diagnostic is a single message produced by the frontend.
type Diagnostic struct {
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
	Fix      *Fix     `json:"fix,omitempty"`
}

// FrontendResult is the outcome of one compile or check of one source text.
// Code is only meaningful when Emitted is true.
type FrontendResult struct {
	Success     bool         `json:"success"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Code        string       `json:"code,omitempty"`
	Emitted     bool         `json:"emitted,omitempty"`
	Imports     []string     `json:"imports,omitempty"`
}

// ErrorCount returns the number of error severity diagnostics.
func (r FrontendResult) ErrorCount() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Failed returns a failed result carrying a single error diagnostic.
func Failed(code, message string, line, column int) FrontendResult {
	return FrontendResult{
		Diagnostics: []Diagnostic{{
			Message:  message,
			Line:     line,
			Column:   column,
			Severity: SeverityError,
			Code:     code,
		}},
	}
}
