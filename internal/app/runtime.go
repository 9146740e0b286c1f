package app

import (
	"os"
	"sync"
)

// TestModeEnv marks a process started by `go test`; entry points return
// before touching Postgres or Redis.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
