// internal/config/config.go
// Package: config
//
// Package config resolves a run's settings from flags, an optional YAML file and
// SOLVERBENCH_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mwiater/solverbench/internal/cases"
	"github.com/mwiater/solverbench/internal/harness"
)

// EnvPrefix prefixes every environment variable, e.g. SOLVERBENCH_REPETITIONS.
const EnvPrefix = "SOLVERBENCH"

// DefaultFileName is looked up in the working directory when no --config is given.
const DefaultFileName = "solverbench"

// Keys shared by flags, the config file and the environment.
const (
	KeySolver      = "solver"
	KeyCases       = "cases"
	KeyParams      = "params"
	KeyOut         = "out"
	KeyFilter      = "filter"
	KeyRepetitions = "repetitions"
	KeySweep       = "sweep"
	KeySweepPreset = "sweep-preset"
	KeyStats       = "stats"
	KeyCharts      = "charts"
	KeyTimeout     = "timeout"
	KeyInputExt    = "input-ext"
	KeyParamsExt   = "params-ext"
	KeyKeepOutput  = "keep-output"
	KeyDB          = "db"
	KeyMetrics     = "metrics"
	KeyTUI         = "tui"
)

// Settings is everything a run needs: the harness configuration and which
// optional sinks to attach.
type Settings struct {
	Harness harness.Config
	// SQLite history database; empty disables it.
	DBPath string
	// Write <out>/metrics.prom.
	Metrics bool
	// Live progress view instead of plain console lines.
	TUI bool
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRepetitions, harness.DefaultRepetitions)
	v.SetDefault(KeyStats, string(harness.StatsBasic))
	v.SetDefault(KeyCharts, true)
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyInputExt, cases.DefaultInputExt)
	v.SetDefault(KeyParamsExt, cases.DefaultParamsExt)
	return v
}

// ReadFile loads path, or solverbench.yaml from the working directory when path is
// empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// BindFlags binds every flag of fs whose name is a config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	for _, key := range []string{
		KeyRepetitions, KeySweepPreset, KeyStats, KeyCharts, KeyTimeout,
		KeyInputExt, KeyParamsExt, KeyKeepOutput, KeyDB, KeyMetrics, KeyTUI,
	} {
		if f := fs.Lookup(key); f != nil {
			errs = append(errs, v.BindPFlag(key, f))
		}
	}
	return errors.Join(errs...)
}

// SetArgs applies the positional arguments: solver, cases, params, out and an
// optional filter.
func SetArgs(v *viper.Viper, args []string) {
	for i, key := range []string{KeySolver, KeyCases, KeyParams, KeyOut, KeyFilter} {
		if i < len(args) {
			v.Set(key, args[i])
		}
	}
}

// Load resolves and validates the settings.
func Load(v *viper.Viper) (Settings, error) {
	sweep, err := loadSweep(v)
	if err != nil {
		return Settings{}, err
	}

	cfg := harness.Config{
		Executable:  v.GetString(KeySolver),
		CasesPath:   v.GetString(KeyCases),
		ParamsPath:  v.GetString(KeyParams),
		OutputDir:   v.GetString(KeyOut),
		FilterPath:  v.GetString(KeyFilter),
		Repetitions: v.GetInt(KeyRepetitions),
		Sweep:       sweep,
		Stats:       harness.StatsVariant(strings.ToLower(v.GetString(KeyStats))),
		Charts:      v.GetBool(KeyCharts),
		Timeout:     v.GetDuration(KeyTimeout),
		InputExt:    dotted(v.GetString(KeyInputExt)),
		ParamsExt:   dotted(v.GetString(KeyParamsExt)),
		KeepOutput:  v.GetBool(KeyKeepOutput),
	}
	if err := validate(cfg); err != nil {
		return Settings{}, err
	}
	return Settings{
		Harness: cfg,
		DBPath:  v.GetString(KeyDB),
		Metrics: v.GetBool(KeyMetrics),
		TUI:     v.GetBool(KeyTUI),
	}, nil
}

func validate(cfg harness.Config) error {
	var missing []string
	for _, f := range []struct{ key, value string }{
		{KeySolver, cfg.Executable},
		{KeyCases, cfg.CasesPath},
		{KeyParams, cfg.ParamsPath},
		{KeyOut, cfg.OutputDir},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required setting(s): %s", strings.Join(missing, ", "))
	}
	if cfg.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", cfg.Repetitions)
	}
	if cfg.Stats != harness.StatsBasic && cfg.Stats != harness.StatsFull {
		return fmt.Errorf("stats must be %q or %q, got %q", harness.StatsBasic, harness.StatsFull, cfg.Stats)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.InputExt == cfg.ParamsExt {
		return fmt.Errorf("input and params extensions are both %q", cfg.InputExt)
	}
	return nil
}

// loadSweep combines the named preset with explicit axes. Axes come either as
// "key=v1,v2" strings (flags, environment) or as {key, values} maps (YAML).
func loadSweep(v *viper.Viper) (harness.Sweep, error) {
	var sweep harness.Sweep
	if name := v.GetString(KeySweepPreset); name != "" {
		preset, ok := harness.Presets[name]
		if !ok {
			return nil, fmt.Errorf("unknown sweep preset %q", name)
		}
		sweep = append(sweep, preset...)
	}

	switch raw := v.Get(KeySweep).(type) {
	case nil:
	case string:
		if strings.TrimSpace(raw) != "" {
			axes, err := harness.ParseSweep(strings.Split(raw, ";"))
			if err != nil {
				return nil, err
			}
			sweep = append(sweep, axes...)
		}
	case []string:
		axes, err := harness.ParseSweep(raw)
		if err != nil {
			return nil, err
		}
		sweep = append(sweep, axes...)
	case []any:
		for i, item := range raw {
			switch it := item.(type) {
			case string:
				a, err := harness.ParseAxis(it)
				if err != nil {
					return nil, err
				}
				sweep = append(sweep, a)
			case map[string]any:
				a, err := axisFromMap(it)
				if err != nil {
					return nil, fmt.Errorf("sweep[%d]: %w", i, err)
				}
				sweep = append(sweep, a)
			default:
				return nil, fmt.Errorf("sweep[%d]: unsupported entry %T", i, item)
			}
		}
	default:
		return nil, fmt.Errorf("sweep: unsupported value %T", raw)
	}
	return sweep, sweep.Validate()
}

func axisFromMap(m map[string]any) (harness.Axis, error) {
	key, _ := m["key"].(string)
	if key == "" {
		return harness.Axis{}, errors.New("axis without key")
	}
	list, ok := m["values"].([]any)
	if !ok || len(list) == 0 {
		return harness.Axis{}, fmt.Errorf("axis %q without values", key)
	}
	a := harness.Axis{Key: key}
	for _, val := range list {
		a.Values = append(a.Values, fmt.Sprint(val))
	}
	return a, nil
}

func dotted(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
