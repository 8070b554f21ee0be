package configuration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webvolta/zammad/resource"
)

func TestSetupDefaults(t *testing.T) {
	resource.Require(t, resource.UnitTest)
	require.NoError(t, Setup(""))

	require.Equal(t, "localhost", PostgresHost())
	require.Equal(t, int64(5432), PostgresPort())
	require.Equal(t, "disable", PostgresSSLMode())
	require.Equal(t, "noreply@zammad.example.com", NotificationSenderAddress())
	require.Equal(t, "@every 1m", PendingSweepSchedule())
	require.Equal(t, []string{"smime"}, SecureMailingBackends())
	require.False(t, IsPostgresDeveloperModeEnabled())
}

func TestEnvironmentOverride(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	existing := os.Getenv("ZAMMAD_POSTGRES_HOST")
	defer os.Setenv("ZAMMAD_POSTGRES_HOST", existing)
	os.Setenv("ZAMMAD_POSTGRES_HOST", "db.internal")

	require.NoError(t, Setup(""))
	require.Equal(t, "db.internal", PostgresHost())
	require.Contains(t, PostgresConfigString(), "host=db.internal")
}

func TestMissingConfigFile(t *testing.T) {
	resource.Require(t, resource.UnitTest)
	require.Error(t, Setup("/does/not/exist.yaml"))
	// leave a clean state for the other tests
	require.NoError(t, Setup(""))
}
