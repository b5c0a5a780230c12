// Package output builds termenv outputs with the CLI's color policy.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorProfile returns Ascii when NO_COLOR is set and the detected profile otherwise.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// ProfileFor returns the profile for w: Ascii unless w is a terminal and NO_COLOR is unset.
func ProfileFor(w io.Writer) termenv.Profile {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		return termenv.Ascii
	}
	return ColorProfile()
}

// New creates a termenv.Output on w using ColorProfile.
func New(w io.Writer) *termenv.Output {
	return NewWithProfile(w, ColorProfile())
}

// NewWithProfile creates a termenv.Output on w with a fixed profile.
func NewWithProfile(w io.Writer, p termenv.Profile) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	return termenv.NewOutput(w, termenv.WithProfile(p), termenv.WithTTY(true))
}

// Colorize renders s in the hex color c on out.
func Colorize(out *termenv.Output, s, c string) string {
	return out.String(s).Foreground(out.Color(c)).String()
}
