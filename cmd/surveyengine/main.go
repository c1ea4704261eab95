// Package main is the entry point for the survey engine CLI.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
	"github.com/parcelgrid/survey-engine/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := newRootCmd()
	root.Version = fmt.Sprintf("%s (commit=%s, built=%s)", version, commit, date)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	configPath  string
	envFile     string
	dbPath      string
	logLevel    string
	dumpMetrics bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	db       *sql.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "surveyengine",
		Short:         "Survey computation and validation engine",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.ErrOrStderr())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to configuration file (JSON, YAML or TOML)")
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	f.StringVar(&a.dbPath, "db", "", "SQLite database for seals, snapshots and audit records (overrides db_path)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.BoolVar(&a.dumpMetrics, "metrics", false, "write collected metrics to stderr on exit")

	root.AddCommand(
		newParseCmd(a),
		newComputeCmd(a),
		newGenerateCmd(a),
		newQuotasCmd(a),
		newValidateCmd(a),
		newSealCmd(a),
		newVerifyCmd(a),
		newRunCmd(a),
	)
	return root
}

func (a *app) setup() error {
	// A missing .env is not an error.
	_ = godotenv.Load(a.envFile)

	// Resolve config path: --config flag > SURVEY_CONFIG env > auto-discover.
	path := a.configPath
	if path == "" {
		path = os.Getenv("SURVEY_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}

	if path == "" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}
	if env := os.Getenv("SURVEY_DB"); env != "" && a.dbPath == "" {
		a.dbPath = env
	}
	if a.dbPath != "" {
		a.cfg.DBPath = a.dbPath
	}

	a.logger = logging.New(logging.Config{Level: a.cfg.Logging.Level, Format: a.cfg.Logging.Format})
	if a.cfg.MetricsEnabled || a.dumpMetrics {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry)
	}

	if a.cfg.DBPath != "" {
		db, err := store.NewDB(a.cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.db = db
	}
	a.logger.Debug("configuration loaded", "config", path, "db", a.cfg.DBPath)
	return nil
}

func (a *app) teardown(w io.Writer) error {
	if a.db != nil {
		a.db.Close()
	}
	if !a.dumpMetrics || a.registry == nil {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// discoverConfig looks for a config file next to the executable, then in the cwd.
func discoverConfig() string {
	names := []string{"survey.yaml", "survey.toml", "survey.json"}
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
