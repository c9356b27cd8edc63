package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInTestModeFollowsEnvironment(t *testing.T) {
	for value, want := range map[string]bool{
		"1":     true,
		"true":  true,
		" 1 ":   true,
		"0":     false,
		"false": false,
		"":      false,
		"yes":   false,
	} {
		t.Setenv(testModeEnv, value)
		assert.Equal(t, want, RefreshTestMode(), "value %q", value)
		assert.Equal(t, want, InTestMode(), "cached value %q", value)
	}
}
