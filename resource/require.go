package resource

import (
	"os"
	"testing"
)

const (
	// UnitTest is the environment variable that needs to be set to run unit tests.
	UnitTest = "ZAMMAD_RESOURCE_UNIT_TEST"
	// Database is the environment variable that needs to be set to run tests
	// that require a postgres database.
	Database = "ZAMMAD_RESOURCE_DATABASE"

	stSkipReason = "Skipping test because environment variable %s is not set."
)

// Require checks if all the given environment variables ("envVars") are set
// and if one is not set it will skip the test ("t").
func Require(t *testing.T, envVars ...string) {
	for _, envVar := range envVars {
		if _, c := os.LookupEnv(envVar); !c {
			t.Skipf(stSkipReason, envVar)
			return
		}
	}
}
