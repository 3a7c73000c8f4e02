// Package testutil has helpers for tests that need live infrastructure.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"
)

// RequireEnv returns the value of key, skipping the test when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("skipping: %s is not set", key)
	}
	return v
}

// Context returns a context bounded by timeout and cancelled at test end.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
