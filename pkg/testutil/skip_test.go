package testutil

import "testing"

func TestRequireIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode skips every integration test")
	}

	t.Setenv("INTEGRATION_TESTS", "")
	ran := false
	t.Run("unset", func(t *testing.T) {
		RequireIntegration(t)
		ran = true
	})
	if ran {
		t.Fatal("expected the test to be skipped without INTEGRATION_TESTS")
	}

	t.Setenv("INTEGRATION_TESTS", "1")
	t.Run("set", func(t *testing.T) {
		RequireIntegration(t)
		ran = true
	})
	if !ran {
		t.Fatal("expected the test to run with INTEGRATION_TESTS=1")
	}
}
