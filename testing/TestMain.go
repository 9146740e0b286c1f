// Package testing is imported for its side effects by package tests: the
// process runs in test mode and local time is UTC, so calendar-day
// assertions do not depend on the host zone.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
	"time"
)

var once sync.Once

func setup() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		time.Local = time.UTC
	})
}

func init() {
	setup()
}

// TestMain can be assigned by packages that want an explicit entry point.
func TestMain(m *stdtesting.M) {
	setup()
	os.Exit(m.Run())
}
