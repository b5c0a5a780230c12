package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/tsl/internal/core/domain"
)

func TestInternedString(t *testing.T) {
	a := domain.NewInternedString("src/a.ts")
	b := domain.NewInternedString("src/" + "a.ts")

	assert.Equal(t, a, b)
	assert.Equal(t, "src/a.ts", a.String())
	assert.False(t, a.IsZero())
	assert.True(t, domain.InternedString{}.IsZero())
}
