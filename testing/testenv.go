// Package testing prepares the process environment for package tests that
// build the full application. Import it for its side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var defaults = map[string]string{
	"MARKETAI_TEST_MODE": "1",
	"SESSION_SECRET":     "test-session-secret",
	"CSRF_SECRET":        "test-csrf-secret",
	"LOG_FORMAT":         "json",
}

func ensureTestEnv() {
	once.Do(func() {
		for key, value := range defaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestEnv()
}

// TestMain can be assigned from a package's own TestMain to make the setup
// explicit.
func TestMain(m *stdtesting.M) {
	ensureTestEnv()
	os.Exit(m.Run())
}
