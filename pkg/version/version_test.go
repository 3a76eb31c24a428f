package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsTrimmedVersion(t *testing.T) {
	assert.Equal(t, strings.TrimSpace(Version), Get())
}

func TestVersionPrefixed(t *testing.T) {
	s := Get()
	if assert.NotEmpty(t, s) {
		assert.Equal(t, byte('v'), s[0])
	}
}
