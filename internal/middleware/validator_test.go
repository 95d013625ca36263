package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("3f2b8c1e-4d5a-4c3b-9e2f-1a2b3c4d5e6f"))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("not-a-uuid"))
	assert.Error(t, ValidateSessionID("{3f2b8c1e-4d5a-4c3b-9e2f-1a2b3c4d5e6f}"))
}

func TestParseIndex(t *testing.T) {
	n, err := ParseIndex("3")
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = ParseIndex("-1")
	assert.Error(t, err)
	_, err = ParseIndex("x")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "apr.pdf", SanitizeFilename(`C:\Users\me\apr.pdf`))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "ab.pdf", SanitizeFilename("a\x00b.pdf"))
	assert.Equal(t, "upload", SanitizeFilename(""))

	long := SanitizeFilename(strings.Repeat("x", 300) + ".pdf")
	assert.Len(t, long, 255)
	assert.True(t, strings.HasSuffix(long, ".pdf"))
}
