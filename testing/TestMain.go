package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("MATHSHELP_TEST_MODE", "1")
		if os.Getenv("AUTH0_DOMAIN") == "" {
			_ = os.Setenv("AUTH0_DOMAIN", "mathshelp-test.local")
		}
		if os.Getenv("AUTH0_AUDIENCE") == "" {
			_ = os.Setenv("AUTH0_AUDIENCE", "https://api.mathshelp.test")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
