package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/genomatch/internal/ancestry"
	"github.com/inodb/genomatch/internal/duckdb"
	"github.com/inodb/genomatch/internal/output"
)

// setting is one configuration key understood by genomatch.
type setting struct {
	key   string
	usage string
	def   func(home string) any // nil: no default
	parse func(string) (any, error)
}

var settings = []setting{
	{"db.path", "DuckDB database file",
		func(home string) any { return filepath.Join(home, ".genomatch", "genomatch.duckdb") }, parsePath},
	{"ancestry.plink", "plink binary",
		func(string) any { return ancestry.DefaultConfig().Plink }, parseString},
	{"ancestry.fastngsadmix", "fastNGSadmix binary",
		func(string) any { return ancestry.DefaultConfig().FastNGSadmix }, parseString},
	{"ancestry.nind_file", "per-population sample counts of the reference panel",
		func(string) any { return ancestry.DefaultConfig().NIndFile }, parsePath},
	{"ancestry.ref_panel", "allele frequency reference panel",
		func(string) any { return ancestry.DefaultConfig().RefPanel }, parsePath},
	{"ancestry.timeout", "limit for each external tool run",
		func(string) any { return ancestry.DefaultConfig().Timeout }, parseDuration},
	{"scan.workers", "goroutines scoring records during a scan",
		func(string) any { return runtime.NumCPU() }, parseWorkers},
	{"uploads.retention", "age at which provisional uploads are purged",
		func(string) any { return duckdb.DefaultRetention }, parseDuration},
	{"metrics.file", "Prometheus textfile written after each command",
		nil, parsePath},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

func parseString(v string) (any, error) { return v, nil }

// parsePath makes v absolute so that it does not depend on the working
// directory of later runs.
func parsePath(v string) (any, error) {
	if v == "" {
		return v, nil
	}
	if strings.HasPrefix(v, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v = filepath.Join(home, v[2:])
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return nil, err
	}
	return abs, nil
}

func parseDuration(v string) (any, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, fmt.Errorf("duration must be positive: %s", v)
	}
	return d.String(), nil
}

func parseWorkers(v string) (any, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("need at least 1 worker, got %d", n)
	}
	return n, nil
}

func newConfigCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change genomatch settings",
		Long: `Show the effective value of every setting, or get and set single keys.
Settings are read from ~/.genomatch.yaml (or --config) and from GENOMATCH_*
environment variables, e.g. GENOMATCH_DB_PATH.`,
		Example: `  genomatch config
  genomatch config set ancestry.ref_panel /data/refPanel_humanOrigins_7worldPops.txt
  genomatch config set uploads.retention 2h
  genomatch config get db.path`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asYAML {
				return showYAML(cmd)
			}
			return showTable(cmd)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print settings as YAML")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, ok := lookupSetting(args[0]); !ok {
					return unknownSetting(args[0])
				}
				val := viper.Get(args[0])
				if val == nil {
					return fmt.Errorf("%s is not set", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store one setting in the config file",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setSetting(cmd, args[0], args[1])
			},
		},
	)
	return cmd
}

func unknownSetting(key string) error {
	known := make([]string, len(settings))
	for i, s := range settings {
		known[i] = s.key
	}
	return usageError{fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(known, ", "))}
}

func showTable(cmd *cobra.Command) error {
	tw := output.NewTabWriter(cmd.OutOrStdout(), "key", "value", "description")
	if f := viper.ConfigFileUsed(); f != "" {
		tw.WriteComment("config file: " + f)
	}
	tw.WriteHeader()
	for _, s := range settings {
		val := ""
		if v := viper.Get(s.key); v != nil {
			val = fmt.Sprint(v)
		}
		tw.Write(s.key, val, s.usage)
	}
	return tw.Flush()
}

func showYAML(cmd *cobra.Command) error {
	doc := map[string]any{}
	for _, s := range settings {
		if v := viper.Get(s.key); v != nil {
			if d, ok := v.(time.Duration); ok {
				v = d.String()
			}
			setNested(doc, s.key, v)
		}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// setSetting validates value and writes it into the config file. Only keys
// already in the file and the new key are written; defaults and flag values
// stay out of it.
func setSetting(cmd *cobra.Command, key, value string) error {
	s, ok := lookupSetting(key)
	if !ok {
		return unknownSetting(key)
	}
	v, err := s.parse(value)
	if err != nil {
		return usageError{fmt.Errorf("invalid value for %s: %w", key, err)}
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	setNested(doc, key, v)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	viper.Set(key, v)

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, v, path)
	return nil
}

func configPath() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}

// setNested stores v under a dotted key, creating intermediate maps.
func setNested(doc map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	m := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
