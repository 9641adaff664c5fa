package main

import (
	"github.com/spf13/cobra"

	"github.com/schoolatlas/schoolatlas/internal/config"
)

var (
	flagEnvironment  string
	flagLogLevel     string
	flagLogFormat    string
	flagDatabasePath string
	flagDataPath     string
	flagOrgsPath     string
	flagCachePages   string
	flagWorkers      string
	flagRPS          string
	flagBurst        string
	flagUserAgent    string
	flagEnvFile      string
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "atlas - classical school directory builder",
	Long: `atlas assembles a deduplicated directory of classical schools from the
member lists of several school organizations.

Each sync fetches every organization's published school list, links the
candidates against the known schools and districts, resolves ambiguous
matches interactively, and persists the result to a local SQLite database.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagEnvironment, "env", "", "environment (development|production)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug|info|warn|error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format (pretty|json)")
	pf.StringVar(&flagDatabasePath, "db", "", "SQLite database path")
	pf.StringVar(&flagDataPath, "data", "", "data directory (default ~/.atlas)")
	pf.StringVar(&flagOrgsPath, "organizations", "", "organization seed YAML path")
	pf.StringVar(&flagCachePages, "cache-pages", "", "cache downloaded pages (true|false)")
	pf.StringVar(&flagWorkers, "workers", "", "concurrent organization fetches")
	pf.StringVar(&flagRPS, "rps", "", "per-host requests per second")
	pf.StringVar(&flagBurst, "burst", "", "per-host request burst")
	pf.StringVar(&flagUserAgent, "user-agent", "", "HTTP user agent")
	pf.StringVar(&flagEnvFile, "env-file", "", "path to .env file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(correctionsCmd)
}

// configOptions collects the persistent flag values for config.Load.
func configOptions() config.Options {
	return config.Options{
		Environment:       flagEnvironment,
		LogLevel:          flagLogLevel,
		LogFormat:         flagLogFormat,
		DatabasePath:      flagDatabasePath,
		DataPath:          flagDataPath,
		OrganizationsPath: flagOrgsPath,
		CachePages:        flagCachePages,
		Workers:           flagWorkers,
		RequestsPerSecond: flagRPS,
		Burst:             flagBurst,
		UserAgent:         flagUserAgent,
		EnvFile:           flagEnvFile,
	}
}
