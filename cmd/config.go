package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "qtsync"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName  = "output"
	configFlagName  = "config"
	verboseFlagName = "verbose"
	eventsFlagName  = "events"
	journalFlagName = "journal"

	qtestHostKey        = "qtest.host"
	qtestBearerTokenKey = "qtest.bearer_token"
	qtestProjectIDKey   = "qtest.project_id"
	qtestSuiteIDKey     = "qtest.suite_id"
	qtestParentTypeKey  = "qtest.parent_type"
	qtestParentIDKey    = "qtest.parent_id"
	qtestSuiteNameKey   = "qtest.suite_name"
	qtestBuildURLKey    = "qtest.build_url"

	statePassedKey  = "states.passed"
	stateFailedKey  = "states.failed"
	statePendingKey = "states.pending"

	createTestRunsKey = "create_test_runs"
	enableLogsKey     = "enable_logs"
	hideWarningKey    = "hide_warning"
	hideResultURLKey  = "hide_result_url"

	remoteTimeoutKey   = "remote.timeout"
	remoteRateLimitKey = "remote.rate_limit"
	remoteRetriesKey   = "remote.retries"

	defaultReportsDir  = ".qtsync"
	defaultJournalName = "events.gob"

	envPrefix = "QTSYNC"

	// Environment variables understood by the original reporter.
	legacySuiteIDEnv  = "QTEST_SUITE_ID"
	legacyBuildURLEnv = "QTEST_BUILD_URL"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".qtsync.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	bindLegacyEnv(qtestSuiteIDKey, legacySuiteIDEnv)
	bindLegacyEnv(qtestBuildURLKey, legacyBuildURLEnv)

	defaults := m.DefaultConfig()

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)

	viper.SetDefault(qtestHostKey, "")
	viper.SetDefault(qtestBearerTokenKey, "")
	viper.SetDefault(qtestProjectIDKey, "")
	viper.SetDefault(qtestSuiteIDKey, "")
	viper.SetDefault(qtestParentTypeKey, "")
	viper.SetDefault(qtestParentIDKey, "")
	viper.SetDefault(qtestSuiteNameKey, "")
	viper.SetDefault(qtestBuildURLKey, "")

	viper.SetDefault(statePassedKey, defaults.StatePassed)
	viper.SetDefault(stateFailedKey, defaults.StateFailed)
	viper.SetDefault(statePendingKey, defaults.StatePending)

	viper.SetDefault(createTestRunsKey, defaults.CreateTestRuns)
	viper.SetDefault(enableLogsKey, defaults.EnableLogs)
	viper.SetDefault(hideWarningKey, defaults.HideWarning)
	viper.SetDefault(hideResultURLKey, defaults.HideResultURL)

	viper.SetDefault(remoteTimeoutKey, defaults.Timeout.String())
	viper.SetDefault(remoteRateLimitKey, defaults.RateLimit)
	viper.SetDefault(remoteRetriesKey, defaults.Retries)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// bindLegacyEnv lets key be set from either its prefixed variable or a legacy one.
func bindLegacyEnv(key, legacy string) {
	prefixed := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))

	cobra.CheckErr(viper.BindEnv(key, prefixed, legacy))
}

// readConfig loads the configuration file. A missing default file is not an
// error; a missing file passed explicitly is.
func readConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	}

	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if path == "" && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
		return nil
	}

	return fmt.Errorf("read config: %w", err)
}

// loadConfig builds the engine configuration from flags, environment and file.
func loadConfig() m.Config {
	cfg := m.DefaultConfig()

	cfg.Host = normalizeHost(viper.GetString(qtestHostKey))
	cfg.BearerToken = viper.GetString(qtestBearerTokenKey)
	cfg.ProjectID = viper.GetString(qtestProjectIDKey)
	cfg.SuiteID = viper.GetString(qtestSuiteIDKey)
	cfg.ParentType = viper.GetString(qtestParentTypeKey)
	cfg.ParentID = viper.GetString(qtestParentIDKey)
	cfg.SuiteName = viper.GetString(qtestSuiteNameKey)
	cfg.BuildURL = viper.GetString(qtestBuildURLKey)

	cfg.StatePassed = viper.GetString(statePassedKey)
	cfg.StateFailed = viper.GetString(stateFailedKey)
	cfg.StatePending = viper.GetString(statePendingKey)

	cfg.CreateTestRuns = viper.GetBool(createTestRunsKey)
	cfg.EnableLogs = viper.GetBool(enableLogsKey)
	cfg.HideWarning = viper.GetBool(hideWarningKey)
	cfg.HideResultURL = viper.GetBool(hideResultURLKey)

	if timeout := viper.GetDuration(remoteTimeoutKey); timeout > 0 {
		cfg.Timeout = timeout
	}

	cfg.RateLimit = viper.GetFloat64(remoteRateLimitKey)
	cfg.Retries = viper.GetInt(remoteRetriesKey)

	return cfg
}

// normalizeHost accepts "acme.qtestnet.com" as well as a pasted URL.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")

	return strings.TrimRight(host, "/")
}

func journalPath(reportsDir, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return filepath.Join(reportsDir, defaultJournalName)
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Numeric slog levels, e.g. -4 for debug.
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger points the default slog logger at a rotating log file.
// It logs at Info unless verbose is set.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	logLevel := parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	if verbose {
		logLevel = slog.LevelDebug
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

