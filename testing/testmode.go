// Package testing switches the process into test mode when blank-imported
// from a _test.go file. Binaries check app.InTestMode and skip their side
// effects.
package testing

import "os"

// Env holds the variables applied for tests. Values already present in the
// environment win.
var Env = map[string]string{
	"STOCKSAVVY_TEST_MODE": "1",
	"STORE_DRIVER":         "memory",
}

func init() {
	Apply()
}

// Apply sets every Env variable that is still unset.
func Apply() {
	for key, value := range Env {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
