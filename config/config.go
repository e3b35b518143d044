// Package config layers wasmpack settings from defaults, an optional
// wasmpack.yaml, WASMPACK_* environment variables and command-line flags.
package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wippyai/wasm-pack/bundle"
	"github.com/wippyai/wasm-pack/debounce"
	"github.com/wippyai/wasm-pack/workspace"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WASMPACK"

// FileName is the configuration file looked up in the working directory.
const FileName = "wasmpack"

// Keys
const (
	KeyOutDir      = "out-dir"
	KeyPackage     = "package"
	KeyVerbose     = "verbose"
	KeyCI          = "ci"
	KeyTarget      = "target"
	KeyDebounce    = "debounce"
	KeyEntryPoints = "entry-points"
	KeyEngine      = "engine"
	KeyDashboard   = "dashboard"
	KeyDebug       = "debug"
)

// Config holds resolved settings for one invocation.
type Config struct {
	OutDir      string        `mapstructure:"out-dir"`
	Package     string        `mapstructure:"package"`
	Target      string        `mapstructure:"target"`
	EntryPoints []string      `mapstructure:"entry-points"`
	Engines     []string      `mapstructure:"engine"`
	Debounce    time.Duration `mapstructure:"debounce"`
	Verbose     bool          `mapstructure:"verbose"`
	Dashboard   bool          `mapstructure:"dashboard"`
	Debug       bool          `mapstructure:"debug"`

	// CI follows the conventional CI variable: any value other than
	// empty, "0" or "false" enables locked builds.
	CI bool `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyOutDir, "dist")
	v.SetDefault(KeyPackage, "")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyCI, "")
	v.SetDefault(KeyTarget, workspace.DefaultTarget)
	v.SetDefault(KeyDebounce, debounce.DefaultDelay.String())
	v.SetDefault(KeyEntryPoints, bundle.DefaultEntryPoints)
	v.SetDefault(KeyEngine, []string{bundle.DefaultEngine})
	v.SetDefault(KeyDashboard, false)
	v.SetDefault(KeyDebug, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyCI, "CI", EnvPrefix+"_CI")

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	return v
}

// BindFlags lets set flags take precedence over every other source.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
	})
	return stderrors.Join(errs...)
}

// Load reads wasmpack.yaml from dir when present and resolves the config.
func Load(v *viper.Viper, dir string) (*Config, error) {
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.CI = truthy(v.GetString(KeyCI))

	if c.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if c.OutDir == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyOutDir)
	}
	return &c, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
