package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// runConfig is the resolved configuration for the run/genesis commands,
// merged by viper from (in increasing priority) a config file, environment
// variables prefixed ETHRUN_, and explicit CLI flags.
type runConfig struct {
	ScenarioPath string
	MetricsAddr  string
	Verbosity    int
}

// loadConfig binds the given flag set's values through viper so a config
// file (--config) or ETHRUN_* environment variables can supply defaults
// that explicit flags still override, matching the layered precedence the
// teacher's node.Config loading establishes by hand with plain flag.FlagSet.
func loadConfig(c *cli.Context) (runConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ethrun")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("scenario", "")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("verbosity", 3)

	if path := c.String("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return runConfig{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	if c.IsSet("scenario") {
		v.Set("scenario", c.String("scenario"))
	}
	if c.IsSet("metrics-addr") {
		v.Set("metrics-addr", c.String("metrics-addr"))
	}
	if c.IsSet("verbosity") {
		v.Set("verbosity", c.Int("verbosity"))
	}

	return runConfig{
		ScenarioPath: v.GetString("scenario"),
		MetricsAddr:  v.GetString("metrics-addr"),
		Verbosity:    cast.ToInt(v.Get("verbosity")),
	}, nil
}
