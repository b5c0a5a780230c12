package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/tsl/internal/core/domain"
)

func TestNewFingerprint_Deterministic(t *testing.T) {
	opts := domain.DefaultOptions()
	a := domain.NewFingerprint(domain.KindCompile, "let x = 1;", opts)
	b := domain.NewFingerprint(domain.KindCompile, "let x = 1;", opts)

	assert.Equal(t, a, b)
	assert.True(t, a.Valid())
	assert.Len(t, a.String(), domain.FingerprintLength)
}

func TestNewFingerprint_Sensitivity(t *testing.T) {
	base := domain.DefaultOptions()
	ref := domain.NewFingerprint(domain.KindCompile, "let x = 1;", base)

	tests := []struct {
		name   string
		kind   domain.TaskKind
		source string
		opts   domain.Options
	}{
		{"source", domain.KindCompile, "let x = 2;", base},
		{"kind", domain.KindCheck, "let x = 1;", base},
		{"target", domain.KindCompile, "let x = 1;", domain.Merge(base, domain.WithTarget(domain.TargetES5))},
		{"strict", domain.KindCompile, "let x = 1;", domain.Merge(base, domain.WithStrict(true))},
		{"noEmit", domain.KindCompile, "let x = 1;", domain.Merge(base, domain.WithNoEmit(true))},
		{"sourceMap", domain.KindCompile, "let x = 1;", domain.Merge(base, domain.WithSourceMap(true))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, ref, domain.NewFingerprint(tt.kind, tt.source, tt.opts))
		})
	}
}

func TestNewFingerprint_SeparatorAmbiguity(t *testing.T) {
	opts := domain.DefaultOptions()
	assert.NotEqual(t,
		domain.NewFingerprint(domain.KindCheck, "a\x00b", opts),
		domain.NewFingerprint(domain.KindCheck, "a", opts),
	)
}

func TestFingerprint_Valid(t *testing.T) {
	assert.False(t, domain.Fingerprint("abc").Valid())
	assert.False(t, domain.Fingerprint("../../../../etc/passwd/0000000000000000000000000000000000000000000").Valid())
}

func TestMerge(t *testing.T) {
	got := domain.Merge(domain.Options{}, domain.WithStrict(true))
	assert.Equal(t, domain.Options{Target: domain.DefaultTarget, Strict: true}, got)

	got = domain.Merge(domain.DefaultOptions(), domain.WithOptions(domain.Options{Target: domain.TargetES5, NoEmit: true}))
	assert.Equal(t, domain.Options{Target: domain.TargetES5, NoEmit: true}, got)
}

func TestParseTarget(t *testing.T) {
	assert.Equal(t, domain.DefaultTarget, domain.ParseTarget(""))
	assert.Equal(t, domain.TargetES5, domain.ParseTarget("es5"))
	assert.Equal(t, domain.TargetES2015, domain.ParseTarget("es6"))
	assert.Equal(t, domain.TargetESNext, domain.ParseTarget("esnext"))
	assert.True(t, domain.TargetES3.LegacyScoping())
	assert.False(t, domain.TargetES2020.LegacyScoping())
}

func TestOptions_Canonical(t *testing.T) {
	opts := domain.Options{Target: domain.TargetES2020, Strict: true}
	assert.JSONEq(t, `{"target":"ES2020","strict":true,"noEmit":false,"sourceMap":false}`, string(opts.Canonical()))
	assert.Equal(t, string(opts.Canonical()), opts.Key())
}
