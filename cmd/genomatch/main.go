// Package main provides the genomatch command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/metrics"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configName = ".genomatch"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(root.ErrOrStderr(), "Run '%s --help' for usage.\n", root.Name())
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by invalid arguments or flags.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// usageArgs wraps a cobra argument validator so its errors map to ExitUsage.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// app holds what every subcommand shares.
type app struct {
	logger  *zap.Logger
	metrics *metrics.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop(), metrics: metrics.New()}
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "genomatch",
		Short: "Genotype store and similarity search",
		Long: `genomatch stores genotypes from VCF files in a deduplicated DuckDB store,
finds stored samples that share genotypes with a query, and estimates
sample ancestry with plink and fastNGSadmix.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = a.logger.Sync()
			if path := viper.GetString("metrics.file"); path != "" {
				if err := a.metrics.WriteToTextfile(path); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ~/.genomatch.yaml)")
	flags.String("db", "", "DuckDB database path (default: ~/.genomatch/genomatch.duckdb)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = viper.BindPFlag("db.path", flags.Lookup("db"))
	_ = viper.BindPFlag("metrics.file", flags.Lookup("metrics-file"))

	root.AddCommand(
		a.newIngestCmd(),
		a.newCommitCmd(),
		newStatsCmd(),
		a.newUploadsCmd(),
		a.newSearchCmd(),
		a.newScanCmd(),
		a.newPredictCmd(),
		a.newSamplesCmd(),
		a.newExportCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// initConfig reads the config file and environment and sets defaults.
func initConfig(cfgFile string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	for _, s := range settings {
		if s.def != nil {
			viper.SetDefault(s.key, s.def(home))
		}
	}

	viper.SetEnvPrefix("GENOMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// openStore opens the configured database.
func (a *app) openStore() (*duckdb.Store, error) {
	path := viper.GetString("db.path")
	a.logger.Debug("opening store", zap.String("path", path))
	return duckdb.Open(path)
}

// purgeStale removes provisional uploads older than the retention period.
func (a *app) purgeStale(cmd *cobra.Command, s *duckdb.Store) error {
	cutoff := time.Now().Add(-viper.GetDuration("uploads.retention"))
	n, err := s.PurgeStaleUploads(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("deleted stale uploads", zap.Int64("count", n))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "genomatch version %s (%s) built %s\n", version, commit, date)
			return nil
		},
	}
}
