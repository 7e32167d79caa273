// Package config loads the viewer settings from flags, WHEP_* environment
// variables and an optional yaml file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Endpoint   string   `mapstructure:"endpoint"`
	Token      string   `mapstructure:"token"`
	ICEServers []string `mapstructure:"ice-server"`
	ICEPort    uint16   `mapstructure:"ice-port"`
	LogLevel   string   `mapstructure:"log-level"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `mapstructure:"metrics-addr"`
}

var ErrNoEndpoint = errors.New("no endpoint")

func Load(args []string) (cfg *Config, err error) {
	defer err2.Handle(&err, "config")

	fs := pflag.NewFlagSet("whep", pflag.ContinueOnError)
	fs.String("endpoint", "", "WHEP endpoint URL")
	fs.String("token", "", "bearer token")
	fs.StringSlice("ice-server", nil, "STUN/TURN server URL, repeatable")
	fs.Uint16("ice-port", 0, "single UDP port for ICE, 0 for ephemeral ports")
	fs.String("log-level", zerolog.InfoLevel.String(), "trace, debug, info, warn or error")
	fs.String("metrics-addr", "", "listen address for prometheus metrics, empty to disable")
	file := fs.String("config", "", "yaml config file")
	try.To(fs.Parse(args))

	v := viper.New()
	try.To(v.BindPFlags(fs))
	v.SetEnvPrefix("WHEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if *file != "" {
		v.SetConfigFile(*file)
		v.SetConfigType("yaml")
		try.To(v.ReadInConfig())
	}

	cfg = &Config{}
	try.To(v.Unmarshal(cfg))
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("log-level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

// Level is the parsed log level, info when unset.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return l
}
