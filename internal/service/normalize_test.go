package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  Ada  ", "Ada"},
		{"collapses inner whitespace", "Ada \t\n Lovelace", "Ada Lovelace"},
		{"composes decomposed accents", "Jose\u0301", "Jos\u00e9"},
		{"keeps precomposed accents", "Jos\u00e9", "Jos\u00e9"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeName(tt.input))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "prof@example.edu", normalizeEmail("  Prof@Example.EDU "))
	assert.Equal(t, "", normalizeEmail(""))
}
