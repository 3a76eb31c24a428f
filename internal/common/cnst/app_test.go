package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppConstants(t *testing.T) {
	assert.Equal(t, "wshub", AppName)
	assert.Equal(t, "wsctl", CommandName)
}
