package ports

import "go.trai.ch/tsl/internal/core/domain"

// UnitReport is the result of one file for rendering.
type UnitReport struct {
	Path   string
	Source string
	Result domain.FrontendResult
	Err    error
}

// Reporter renders results to the user.
type Reporter interface {
	// Report renders the diagnostics of every failed or warning-bearing unit.
	Report(units []UnitReport)
	// Summary renders the closing line of a run.
	Summary(kind domain.TaskKind, units []UnitReport)
}
