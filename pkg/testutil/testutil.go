// Package testutil provides testing utilities for chunkpool
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Counter is the count surface every pool exposes.
type Counter interface {
	UsedCount() int
	FreeCount() int
	Capacity() int
}

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// RequirePoolInvariant fails the test immediately unless used+free equals
// capacity and none of the counts is negative.
func RequirePoolInvariant(t *testing.T, p Counter) {
	t.Helper()
	used, free, capacity := p.UsedCount(), p.FreeCount(), p.Capacity()
	require.GreaterOrEqual(t, used, 0, "used count")
	require.GreaterOrEqual(t, free, 0, "free count")
	require.Equal(t, capacity, used+free, "used (%d) + free (%d) != capacity (%d)", used, free, capacity)
}

// RequireNoError fails the test immediately if err is not nil.
// The msg parameter provides additional context in the failure message.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
