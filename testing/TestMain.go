package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("SEMSEARCH_TEST_MODE", "1")
		if os.Getenv("SECRET_KEY") == "" {
			_ = os.Setenv("SECRET_KEY", "test-secret-key")
		}
		if os.Getenv("ENCRYPTION_KEY") == "" {
			_ = os.Setenv("ENCRYPTION_KEY", "test-encryption-key")
		}
		if os.Getenv("MLOPS_SERVICE_URL") == "" {
			_ = os.Setenv("MLOPS_SERVICE_URL", "http://127.0.0.1:0")
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
