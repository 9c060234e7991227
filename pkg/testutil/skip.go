// Package testutil holds helpers shared by the integration tests.
package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv opts a CI run into container-backed tests.
const IntegrationEnv = "RECORDLOCK_INTEGRATION_TESTS"

// RequireIntegration skips container-backed tests in short mode, and in CI
// unless IntegrationEnv is set. Local runs need a reachable docker daemon.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv(IntegrationEnv) == "" && os.Getenv("CI") != "" {
		t.Skip("skipping integration test (set " + IntegrationEnv + "=1 to run)")
	}
}
