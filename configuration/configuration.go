package configuration

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

// String returns the current configuration as a string.
func String() string {
	allSettings := viper.AllSettings()
	y, err := yaml.Marshal(&allSettings)
	if err != nil {
		panic(fmt.Errorf("failed to marshal config to string: %s", err.Error()))
	}
	return fmt.Sprintf("%s\n", y)
}

// Setup sets up defaults for viper configuration options and overrides these
// values with the values from the given configuration file if it is not
// empty. Those values again are overwritten by environment variables.
func Setup(configFilePath string) error {
	viper.Reset()

	// Expect environment variables to be prefixed with "ZAMMAD_".
	viper.SetEnvPrefix("ZAMMAD")

	// Automatically map environment variables to viper values
	viper.AutomaticEnv()

	// To override nested variables through environment variables, we
	// need to make sure that we don't have to use dots (".") inside the
	// environment variable names.
	// To override foo.bar you need to set ZAMMAD_FOO_BAR
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetTypeByDefaultValue(true)
	setConfigDefaults()

	// Explicitly specify which file to load config from
	if configFilePath != "" {
		viper.SetConfigFile(configFilePath)
		viper.SetConfigType("yaml")
		err := viper.ReadInConfig()
		if err != nil {
			return fmt.Errorf("fatal error config file: %s", err)
		}
	}

	return nil
}

// Constants for viper variable names. Will be used to set
// default values as well as to get each value.
const (
	varPostgresHost                 = "postgres.host"
	varPostgresPort                 = "postgres.port"
	varPostgresUser                 = "postgres.user"
	varPostgresPassword             = "postgres.password"
	varPostgresDatabase             = "postgres.database"
	varPostgresSSLMode              = "postgres.sslmode"
	varDeveloperModeEnabled         = "developer.mode.enabled"
	varNotificationSenderAddress    = "notification.sender.address"
	varNotificationSenderName       = "notification.sender.name"
	varPendingSweepSchedule         = "pending.sweep.schedule"
	varSecureMailingDefaultBackends = "securemailing.backends"
)

func setConfigDefaults() {
	//---------
	// Postgres
	//---------
	viper.SetTypeByDefaultValue(true)
	viper.SetDefault(varPostgresHost, "localhost")
	viper.SetDefault(varPostgresPort, 5432)
	viper.SetDefault(varPostgresUser, "postgres")
	viper.SetDefault(varPostgresPassword, "mysecretpassword")
	viper.SetDefault(varPostgresDatabase, "postgres")
	viper.SetDefault(varPostgresSSLMode, "disable")

	//-----------------
	// Trigger engine
	//-----------------
	viper.SetDefault(varDeveloperModeEnabled, false)
	viper.SetDefault(varNotificationSenderAddress, "noreply@zammad.example.com")
	viper.SetDefault(varNotificationSenderName, "Notification Master")
	// once a minute, like the upstream scheduler's pending ticket job
	viper.SetDefault(varPendingSweepSchedule, "@every 1m")
	viper.SetDefault(varSecureMailingDefaultBackends, []string{"smime"})
}

// PostgresHost returns the postgres host as set via default, config file, or
// environment variable.
func PostgresHost() string {
	return viper.GetString(varPostgresHost)
}

// PostgresPort returns the postgres port as set via default, config file, or
// environment variable.
func PostgresPort() int64 {
	return viper.GetInt64(varPostgresPort)
}

// PostgresUser returns the postgres user as set via default, config file, or
// environment variable.
func PostgresUser() string {
	return viper.GetString(varPostgresUser)
}

// PostgresPassword returns the postgres password as set via default, config
// file, or environment variable.
func PostgresPassword() string {
	return viper.GetString(varPostgresPassword)
}

// PostgresDatabase returns the postgres database as set via default, config
// file, or environment variable.
func PostgresDatabase() string {
	return viper.GetString(varPostgresDatabase)
}

// PostgresSSLMode returns the postgres sslmode as set via default, config
// file, or environment variable.
func PostgresSSLMode() string {
	return viper.GetString(varPostgresSSLMode)
}

// PostgresConfigString returns a ready to use string for usage in sql.Open().
func PostgresConfigString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		PostgresHost(),
		PostgresPort(),
		PostgresUser(),
		PostgresPassword(),
		PostgresDatabase(),
		PostgresSSLMode(),
	)
}

// IsPostgresDeveloperModeEnabled returns true if development related features
// (e.g. text log output instead of JSON) are enabled.
func IsPostgresDeveloperModeEnabled() bool {
	return viper.GetBool(varDeveloperModeEnabled)
}

// NotificationSenderAddress returns the system email address used as the
// sender of trigger notifications.
func NotificationSenderAddress() string {
	return viper.GetString(varNotificationSenderAddress)
}

// NotificationSenderName returns the display name used as the sender of
// trigger notifications.
func NotificationSenderName() string {
	return viper.GetString(varNotificationSenderName)
}

// PendingSweepSchedule returns the cron schedule on which tickets with a
// reached pending time are re-submitted to the dispatcher.
func PendingSweepSchedule() string {
	return viper.GetString(varPendingSweepSchedule)
}

// SecureMailingBackends returns the security backends enabled for outgoing
// notifications.
func SecureMailingBackends() []string {
	return viper.GetStringSlice(varSecureMailingDefaultBackends)
}
