package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CERTCHAIN_TEST_MODE") == "" {
			_ = os.Setenv("CERTCHAIN_TEST_MODE", "1")
		}
	})
}
