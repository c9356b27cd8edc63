package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

const testModeEnv = "MARKETAI_TEST_MODE"

var (
	testModeMu     sync.RWMutex
	testModeCached *bool
)

func readTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(testModeEnv)))
	return err == nil && on
}

// InTestMode reports whether MARKETAI_TEST_MODE is set, in which case the
// binaries return before touching Postgres or Redis. The variable is read once.
func InTestMode() bool {
	testModeMu.RLock()
	cached := testModeCached
	testModeMu.RUnlock()
	if cached != nil {
		return *cached
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads MARKETAI_TEST_MODE and returns the new value.
func RefreshTestMode() bool {
	on := readTestMode()
	testModeMu.Lock()
	testModeCached = &on
	testModeMu.Unlock()
	return on
}
