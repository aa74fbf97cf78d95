// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-backed process configuration: listeners, connectors, logging and the
// metrics endpoint. Loaded with viper, rendered with yaml.v3.

package control

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-net/api"
)

// EnvPrefix prefixes environment overrides, e.g. HIOLOAD_LOG_LEVEL.
const EnvPrefix = "HIOLOAD"

// Config is the process configuration.
type Config struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	// LoopCPU pins the loop thread to one CPU; -1 leaves it unpinned.
	LoopCPU    int                 `mapstructure:"loop_cpu" yaml:"loop_cpu"`
	Listeners  []api.ListenConfig  `mapstructure:"listeners" yaml:"listeners,omitempty"`
	Connectors []api.ConnectConfig `mapstructure:"connectors" yaml:"connectors,omitempty"`
}

// DefaultConfig returns a config with no endpoints.
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		MetricsAddr: ":9100",
		LoopCPU:     -1,
	}
}

// LoadConfig reads path (YAML) over the defaults and applies HIOLOAD_*
// environment overrides. An empty path yields defaults plus environment.
func LoadConfig(path string) (Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, oops.In("control").With("path", path).Wrapf(err, "read config")
		}
	}
	return decode(v)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("loop_cpu", def.LoopCPU)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, oops.In("control").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level parses LogLevel.
func (c Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Validate reports every invalid entry at once.
func (c Config) Validate() error {
	var err error
	if _, lerr := c.Level(); lerr != nil {
		err = multierr.Append(err, oops.In("control").Wrapf(api.ErrInvalidArgument, "log level %q", c.LogLevel))
	}
	if c.LoopCPU < -1 {
		err = multierr.Append(err, oops.In("control").Wrapf(api.ErrInvalidArgument, "loop cpu %d", c.LoopCPU))
	}
	for i, l := range c.Listeners {
		if _, perr := l.AddrPort(); perr != nil {
			err = multierr.Append(err, oops.In("control").With("listener", i).Wrap(perr))
		}
		if l.MaxSessions < 0 || l.Backlog < 0 || l.MaxFrameSize < 0 || l.PulseInterval < 0 {
			err = multierr.Append(err, oops.In("control").With("listener", i).Wrapf(api.ErrInvalidArgument, "negative limit"))
		}
	}
	for i, cc := range c.Connectors {
		ap, perr := cc.AddrPort()
		switch {
		case perr != nil:
			err = multierr.Append(err, oops.In("control").With("connector", i).Wrap(perr))
		case ap.Addr().IsUnspecified() || ap.Port() == 0:
			err = multierr.Append(err, oops.In("control").With("connector", i).Wrapf(api.ErrInvalidArgument, "connect target %v", ap))
		}
		if cc.ReconnectInterval < 0 || cc.MaxFrameSize < 0 || cc.PulseInterval < 0 {
			err = multierr.Append(err, oops.In("control").With("connector", i).Wrapf(api.ErrInvalidArgument, "negative limit"))
		}
	}
	return err
}

// YAML renders the effective config.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, oops.In("control").Wrapf(err, "render config")
	}
	return out, nil
}
