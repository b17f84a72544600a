// Package guard switches the process into test mode when imported by a test
// binary, so binaries under test never reach Postgres, Redis or Gotenberg.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

var testDefaults = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"SHIFT_STORE":       "memory",
	"SALES_FEED":        "memory",
	"RECEIPT_MODE":      "text",
	"GOTENBERG_URL":     "http://127.0.0.1:0",
}

func init() {
	once.Do(func() {
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}
