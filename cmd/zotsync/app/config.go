package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/espace/zotsync/internal/cmd/output"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/records"
)

// Backend names accepted by --backend and ZOTSYNC_BACKEND.
const (
	BackendAPI    = "api"
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
)

// envPrefix prefixes every environment variable read through viper.
const envPrefix = "ZOTSYNC"

// Config holds the application configuration loaded from config files,
// environment variables, .env files and flags.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Library selection
	Backend     string
	LibraryID   string
	LibraryType string
	APIKey      string
	APIURL      string
	AuthScheme  string
	DBPath      string

	// Sync behavior
	DryRun      bool
	TagPrefix   string
	Delimiter   string
	PageSize    int
	Timeout     time.Duration
	Deduplicate bool
	Threshold   int
	Policy      string

	// Logging configuration
	LogLevel      string
	LogFormat     string
	LogOutput     string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// flagKeys maps flag names to configuration keys. Flags only override a
// key when they were set on the command line.
var flagKeys = map[string]string{
	"verbose":      "verbose",
	"quiet":        "quiet",
	"no-color":     "no_color",
	"format":       "format",
	"backend":      "backend",
	"library-id":   "library_id",
	"library-type": "library_type",
	"api-key":      "api_key",
	"api-url":      "api_url",
	"auth-scheme":  "auth_scheme",
	"db-path":      "db_path",
	"dry-run":      "dry_run",
	"tag-prefix":   "tag_prefix",
	"delimiter":    "delimiter",
	"page-size":    "page_size",
	"timeout":      "timeout",
	"dedupe":       "deduplicate",
	"threshold":    "fuzzy_threshold",
	"policy":       "policy",
	"log-level":    "log.level",
	"log-file":     "log.output",
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags in flags (may be nil)
//  2. Environment variables (ZOTSYNC_*)
//  3. .env files
//  4. Config file (--config, ZOTSYNC_CONFIG or ~/.zotsync.yaml)
//  5. Defaults
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// the unprefixed logging variables are shared with other tools
	for key, env := range map[string]string{
		"log.level":  "LOG_LEVEL",
		"log.format": "LOG_FORMAT",
		"log.output": "LOG_OUTPUT",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, errors.NewConfigError(key, "bind environment", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.NewConfigError(key, "bind flag", err)
				}
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Changed {
			v.Set("config", f.Value.String())
		}
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	return &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Backend:     strings.ToLower(v.GetString("backend")),
		LibraryID:   v.GetString("library_id"),
		LibraryType: v.GetString("library_type"),
		APIKey:      v.GetString("api_key"),
		APIURL:      v.GetString("api_url"),
		AuthScheme:  v.GetString("auth_scheme"),
		DBPath:      v.GetString("db_path"),

		DryRun:      v.GetBool("dry_run"),
		TagPrefix:   v.GetString("tag_prefix"),
		Delimiter:   v.GetString("delimiter"),
		PageSize:    v.GetInt("page_size"),
		Timeout:     v.GetDuration("timeout"),
		Deduplicate: v.GetBool("deduplicate"),
		Threshold:   v.GetInt("fuzzy_threshold"),
		Policy:      v.GetString("policy"),

		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		LogOutput:     v.GetString("log.output"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendAPI)
	v.SetDefault("library_type", constants.DefaultLibraryType)
	v.SetDefault("auth_scheme", "header")
	v.SetDefault("db_path", constants.DefaultSQLitePath)
	v.SetDefault("tag_prefix", constants.DefaultTagPrefix)
	v.SetDefault("delimiter", constants.DefaultDelimiter)
	v.SetDefault("page_size", constants.DefaultPageSize)
	v.SetDefault("deduplicate", true)
	v.SetDefault("fuzzy_threshold", constants.DefaultThreshold)
	v.SetDefault("policy", constants.DefaultPolicy)
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.max_size_mb", constants.LogRotationSizeMB)
	v.SetDefault("log.max_backups", constants.LogRotationBackups)
	v.SetDefault("log.max_age_days", constants.LogRotationAgeDays)
}

// readConfigFile reads an explicit config file, failing when it cannot be
// read, or searches the standard locations and ignores a missing file.
func readConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.NewConfigError("config", "read "+path, err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName(constants.DefaultConfigName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.NewConfigError("config", "read", err)
	}
	return nil
}

// Validate checks the settings that sync.New does not see.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAPI, BackendLocal, BackendSQLite:
	default:
		return errors.NewValidationError("backend", c.Backend, "must be one of: api, local, sqlite")
	}
	if _, ok := records.ParseLibraryType(c.LibraryType); !ok {
		return errors.NewValidationError("library_type", c.LibraryType, "must be user or group")
	}
	if c.Backend == BackendAPI && strings.TrimSpace(c.LibraryID) == "" {
		return errors.NewValidationError("library_id", c.LibraryID, "is required for the api backend (set ZOTSYNC_LIBRARY_ID)")
	}
	if c.Backend == BackendSQLite && c.libraryType() == records.LibraryGroup && c.LibraryID == "" {
		return errors.NewValidationError("library_id", c.LibraryID, "group libraries need a group id")
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := planner.ParsePolicy(c.Policy); err != nil {
		return err
	}
	return nil
}

func (c *Config) libraryType() records.LibraryType {
	lt, _ := records.ParseLibraryType(c.LibraryType)
	return lt
}

// loadEnvFiles loads environment variables from .env files.
// Variables already set in the environment are never overridden.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
