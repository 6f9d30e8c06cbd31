package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "owner@acme.io", NormalizeEmail("  Owner@ACME.io "))
	assert.Equal(t, NormalizeEmail("STRASSE@x.com"), NormalizeEmail("straße@x.com"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Acme Shop", NormalizeName("  Acme \t  Shop "))
	assert.Equal(t, "ACME", NormalizeName("ＡＣＭＥ"))
}

func TestConfirmationToken(t *testing.T) {
	token, hash, err := NewConfirmationToken()
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.NotEqual(t, token, hash)
	assert.True(t, VerifyConfirmationToken(hash, token))
	assert.False(t, VerifyConfirmationToken(hash, "tok1"))
}
