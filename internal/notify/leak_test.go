//go:build !integration

package notify

import (
	"testing"

	"go.uber.org/goleak"
)

// Integration runs share the binary with container reapers, so the leak
// check only covers unit runs.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
