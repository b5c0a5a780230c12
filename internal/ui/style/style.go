// Package style holds the palette and glyphs shared by the logger and the reporter.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Accent  = lipgloss.Color("#8B5CF6")
	Muted   = lipgloss.Color("#667085")
	Success = lipgloss.Color("#22A06B")
	Error   = lipgloss.Color("#D93025")
	Warning = lipgloss.Color("#F59E0B")
	Code    = lipgloss.Color("#38BDF8")
)

// Glyphs.
const (
	Check  = "✓"
	Cross  = "✗"
	Bang   = "!"
	Arrow  = "→"
	Bullet = "•"
	Pipe   = "│"
)
