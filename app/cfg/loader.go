package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const envFile = ".env"

type rawCfg struct {
	// Storage
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/reports.db" description:"SQLite database file"`
	SettingsKey string `long:"settings-key" env:"SETTINGS_KEY" default:"oh_dot_report_settings" description:"Key under which archive settings are stored"`

	// Application configuration
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl         string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://reports.example.com)"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	RefreshSchedule string `long:"refresh-schedule" env:"REFRESH_SCHEDULE" default:"@every 5m" description:"Cron spec for periodic refreshes"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"DOT Reports/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"America/New_York" description:"Timezone for report dates (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads configuration from the command line, the environment and an
// optional .env file in the working directory. It returns nil, nil when help
// was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:      raw.SourcesDir,
		DBPath:          raw.DBPath,
		SettingsKey:     raw.SettingsKey,
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		WorkerCount:     raw.WorkerCount,
		RefreshSchedule: raw.RefreshSchedule,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
