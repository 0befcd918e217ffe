package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv makes the binaries return before touching the network.
const TestModeEnv = "STOCKSAVVY_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv. Any value strconv.ParseBool accepts
// as true enables test mode.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(on)
}
