package cmd

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "mutflow"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "MUTFLOW"
	envFile   = ".env"

	projectsFlagName    = "projects"
	workspaceFlagName   = "workspace"
	resetFlagName       = "reset"
	parallelFlagName    = "parallel"
	ledgerFlagName      = "ledger"
	mutantsDirFlagName  = "mutants-dir"
	reportsDirFlagName  = "reports-dir"
	majorDirFlagName    = "major-dir"
	sourceFlagName      = "source"
	modelFlagName       = "model"
	focusTestsFlagName  = "focus-tests"
	testTimeoutFlagName = "test-timeout"
	verboseFlagName     = "verbose"

	projectsKey        = "projects"
	workspaceRootKey   = "workspace.root"
	workspaceResetKey  = "workspace.reset"
	parallelKey        = "workspace.parallel"
	checkoutTimeoutKey = "timeout.checkout"
	compileTimeoutKey  = "timeout.compile"
	testTimeoutKey     = "timeout.test"
	ledgerKey          = "results.ledger"
	mutantsDirKey      = "results.mutants_dir"
	reportsDirKey      = "results.reports_dir"
	majorDirKey        = "major.dir"
	focusTestsKey      = "verdict.focus_tests"

	llmProviderKey    = "llm.provider"
	llmModelsKey      = "llm.models"
	llmBaseURLKey     = "llm.base_url"
	llmKeysKey        = "llm.keys"
	llmKeyMaxUsageKey = "llm.key_max_usage"
	llmRateKey        = "llm.rate_per_minute"
	llmTemperatureKey = "llm.temperature"
	llmRoundsKey      = "llm.rounds"
	llmPerRoundKey    = "llm.per_round"
	llmWithTestsKey   = "llm.with_tests"

	defects4jBinaryKey = "tools.defects4j"
	mavenBinaryKey     = "tools.maven"
	metricsTextfileKey = "metrics.textfile"

	defaultProjectsFile    = "projects.csv"
	defaultResetStrategy   = "checkout"
	defaultParallel        = 1
	defaultCheckoutTimeout = "0s"
	defaultCompileTimeout  = "0s"
	defaultTestTimeout     = "30s"
	defaultLedger          = "results/ledger.csv"
	defaultMutantsDir      = "mutants"
	defaultReportsDir      = "reports"
	defaultMajorDir        = "major"

	defaultLLMProvider    = "openrouter"
	defaultLLMModel       = "google/gemini-2.5-flash-lite"
	defaultLLMTemperature = 0.2
	defaultLLMRounds      = 1
	defaultLLMPerRound    = 10

	defaultDefects4J = "defects4j"
	defaultMaven     = "mvn"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".mutflow.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// providerKeyEnv names the environment variable holding each provider's API keys
// (comma separated) when llm.keys is not configured.
var providerKeyEnv = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

var globalLogger *slog.Logger

func init() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load env file", "path", envFile, "error", err)
	}

	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(projectsKey, defaultProjectsFile)
	viper.SetDefault(workspaceRootKey, filepath.Join(os.TempDir(), configBaseName))
	viper.SetDefault(workspaceResetKey, defaultResetStrategy)
	viper.SetDefault(parallelKey, defaultParallel)
	viper.SetDefault(checkoutTimeoutKey, defaultCheckoutTimeout)
	viper.SetDefault(compileTimeoutKey, defaultCompileTimeout)
	viper.SetDefault(testTimeoutKey, defaultTestTimeout)
	viper.SetDefault(ledgerKey, defaultLedger)
	viper.SetDefault(mutantsDirKey, defaultMutantsDir)
	viper.SetDefault(reportsDirKey, defaultReportsDir)
	viper.SetDefault(majorDirKey, defaultMajorDir)
	viper.SetDefault(focusTestsKey, false)

	viper.SetDefault(llmProviderKey, defaultLLMProvider)
	viper.SetDefault(llmModelsKey, []string{defaultLLMModel})
	viper.SetDefault(llmBaseURLKey, "")
	viper.SetDefault(llmKeysKey, []string{})
	viper.SetDefault(llmKeyMaxUsageKey, 0)
	viper.SetDefault(llmRateKey, 0)
	viper.SetDefault(llmTemperatureKey, defaultLLMTemperature)
	viper.SetDefault(llmRoundsKey, defaultLLMRounds)
	viper.SetDefault(llmPerRoundKey, defaultLLMPerRound)
	viper.SetDefault(llmWithTestsKey, false)

	viper.SetDefault(defects4jBinaryKey, defaultDefects4J)
	viper.SetDefault(mavenBinaryKey, defaultMaven)
	viper.SetDefault(metricsTextfileKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return
		}

		slog.Warn("Failed to read config file", "path", configFileName, "error", err)
	}
}

// apiKeys returns the configured keys, falling back to the provider's env variable.
func apiKeys(provider string) []string {
	keys := viper.GetStringSlice(llmKeysKey)
	if len(keys) > 0 {
		return keys
	}

	name, ok := providerKeyEnv[strings.ToLower(provider)]
	if !ok {
		return nil
	}

	var out []string

	for _, key := range strings.Split(os.Getenv(name), ",") {
		if key = strings.TrimSpace(key); key != "" {
			out = append(out, key)
		}
	}

	return out
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

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
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
