package domain

import (
	"encoding/json"
	"strings"
)

// Target is the language level emitted code is written for.
type Target string

const (
	// TargetES3 emits code for ES3 runtimes.
	TargetES3 Target = "ES3"
	// TargetES5 emits code for ES5 runtimes.
	TargetES5 Target = "ES5"
	// TargetES2015 emits code for ES2015 runtimes.
	TargetES2015 Target = "ES2015"
	// TargetES2020 emits code for ES2020 runtimes.
	TargetES2020 Target = "ES2020"
	// TargetESNext emits code for the latest runtimes.
	TargetESNext Target = "ESNext"
)

// DefaultTarget is the target used when none is configured.
const DefaultTarget = TargetES2020

// ParseTarget normalizes a user supplied target name. Unknown names are kept verbatim in upper case.
func ParseTarget(s string) Target {
	switch up := strings.ToUpper(strings.TrimSpace(s)); up {
	case "":
		return DefaultTarget
	case "ES6":
		return TargetES2015
	case "ESNEXT":
		return TargetESNext
	default:
		return Target(up)
	}
}

// LegacyScoping reports whether block scoped declarations must be lowered to var.
func (t Target) LegacyScoping() bool {
	return t == TargetES3 || t == TargetES5
}

// Options is the full set of options a compile or check call accepts.
type Options struct {
	Target    Target
	Strict    bool
	NoEmit    bool
	SourceMap bool
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the options applied when the caller overrides nothing.
func DefaultOptions() Options {
	return Options{Target: DefaultTarget}
}

// WithTarget sets the emit target.
func WithTarget(t Target) Option {
	return func(o *Options) {
		o.Target = t
	}
}

// WithStrict toggles strict checking.
func WithStrict(strict bool) Option {
	return func(o *Options) {
		o.Strict = strict
	}
}

// WithNoEmit toggles code generation.
func WithNoEmit(noEmit bool) Option {
	return func(o *Options) {
		o.NoEmit = noEmit
	}
}

// WithSourceMap toggles the source map comment on emitted code.
func WithSourceMap(sourceMap bool) Option {
	return func(o *Options) {
		o.SourceMap = sourceMap
	}
}

// WithOptions replaces all options with o.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		*dst = o
	}
}

// Merge applies opts over base and returns the effective options.
func Merge(base Options, opts ...Option) Options {
	out := base
	for _, opt := range opts {
		opt(&out)
	}
	if out.Target == "" {
		out.Target = DefaultTarget
	}
	return out
}

// canonicalOptions fixes the field order of the serialized effective options.
type canonicalOptions struct {
	Target    Target `json:"target"`
	Strict    bool   `json:"strict"`
	NoEmit    bool   `json:"noEmit"`
	SourceMap bool   `json:"sourceMap"`
}

// Canonical returns the deterministic serialization of the effective options.
func (o Options) Canonical() []byte {
	//nolint:errchkjson // struct of scalars always encodes
	b, _ := json.Marshal(canonicalOptions(o))
	return b
}

// Key returns Canonical as a string, suitable for map keys.
func (o Options) Key() string {
	return string(o.Canonical())
}
