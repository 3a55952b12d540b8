package supervisor_test

import (
	"os"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if os.Getenv("APP_ENV") == "" {
		_ = os.Setenv("APP_ENV", "test")
	}
	goleak.VerifyTestMain(m)
}
