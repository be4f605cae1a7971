package cmd

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/replicated"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported backends
const (
	backendMemory  = "memory"
	backendLocalFS = "localfs"
	backendBadger  = "badger"
)

// Config describes the CLI configuration.
type Config struct {
	Backend     string       `json:"backend" yaml:"backend" mapstructure:"backend"`             // memory, localfs or badger
	Dir         string       `json:"dir" yaml:"dir" mapstructure:"dir"`                         // repository directory
	LogLevel    string       `json:"logLevel" yaml:"logLevel" mapstructure:"logLevel"`          // info, debug, none...
	CacheSize   int          `json:"cacheSize" yaml:"cacheSize" mapstructure:"cacheSize"`       // nodes and commits kept in cache
	Ordered     bool         `json:"ordered" yaml:"ordered" mapstructure:"ordered"`             // new nodes keep the insertion order of children
	Distributed bool         `json:"distributed" yaml:"distributed" mapstructure:"distributed"` // optimistic commits, for repositories shared by several processes
	Retries     int          `json:"retries" yaml:"retries" mapstructure:"retries"`
	RetryDelay  string       `json:"retryDelay" yaml:"retryDelay" mapstructure:"retryDelay"`
	MetricsAddr string       `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty" mapstructure:"metricsAddr"`
	Badger      BadgerConfig `json:"badger" yaml:"badger" mapstructure:"badger"`

	retryDelay       time.Duration
	valueLogFileSize int64
}

// BadgerConfig tunes the badger backend
type BadgerConfig struct {
	ValueLogFileSize string `json:"valueLogFileSize" yaml:"valueLogFileSize" mapstructure:"valueLogFileSize"` // e.g. 64MiB
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", backendBadger)
	v.SetDefault("dir", ".mk")
	v.SetDefault("logLevel", dlogger.LogLevelInfo)
	v.SetDefault("cacheSize", revstore.DefaultCacheSize)
	v.SetDefault("ordered", false)
	v.SetDefault("distributed", false)
	v.SetDefault("retries", replicated.DefaultRetries)
	v.SetDefault("retryDelay", replicated.DefaultRetryDelay.String())
	v.SetDefault("metricsAddr", "")
	v.SetDefault("badger.valueLogFileSize", "64MiB")
}

func newConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case backendMemory, backendLocalFS, backendBadger:
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	if c.Backend != backendMemory && c.Dir == "" {
		return fmt.Errorf("backend %q requires a repository directory", c.Backend)
	}
	if c.Distributed && c.Backend == backendLocalFS {
		return fmt.Errorf("backend %q does not support distributed commits", c.Backend)
	}
	if c.Retries < 0 {
		return fmt.Errorf("negative retries: %d", c.Retries)
	}

	var err error
	if c.retryDelay, err = time.ParseDuration(c.RetryDelay); err != nil {
		return fmt.Errorf("retry delay: %w", err)
	}
	if c.Badger.ValueLogFileSize != "" {
		if c.valueLogFileSize, err = units.RAMInBytes(c.Badger.ValueLogFileSize); err != nil {
			return fmt.Errorf("badger value log file size: %w", err)
		}
	}
	return nil
}

// configCmd represents the configuration related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the configuration",
	Long: `Commands to manage the mk configuration.

Configuration is read from mk.yaml, looked up in the current directory, then $HOME/.mk, then /etc/mk.
The MK_CONFIG environment variable overrides this lookup. Settings may be overridden by environment
variables prefixed by MK_, e.g. MK_BACKEND=memory or MK_BADGER_VALUELOGFILESIZE=16MiB.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
