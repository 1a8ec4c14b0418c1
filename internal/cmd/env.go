package cmd

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/caarlos0/env/v7"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	ConfPath    string `env:"CONFIG_PATH"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	MetricsAddr string `env:"METRICS_ADDR"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	if envs == nil {
		return errors.ErrNoValue
	}

	var errs []error

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	return errors.Join(errs...)
}

// applyOptions overrides the environment values with the command-line ones,
// if they are set.
func (envs *environment) applyOptions(opts *options) {
	if opts.ConfigPath != "" {
		envs.ConfPath = opts.ConfigPath
	}

	if opts.MetricsAddr != "" {
		envs.MetricsAddr = opts.MetricsAddr
	}

	if opts.Verbose {
		envs.Verbosity = 1
	}
}
