// Package config provides configuration loading for spikerecon.
// Settings come from defaults, an optional YAML file and SPIKERECON_*
// environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/spikerecon/internal/constants"
	"github.com/nvandessel/spikerecon/internal/deployment"
	"github.com/nvandessel/spikerecon/internal/logging"
	"github.com/nvandessel/spikerecon/internal/models"
	"gopkg.in/yaml.v3"
)

// Config contains all spikerecon settings.
type Config struct {
	// Record locates the engine logs and the reconstruction outputs.
	Record RecordConfig `json:"record" yaml:"record"`

	// Trigger selects the event that opens a new epoch.
	Trigger TriggerConfig `json:"trigger" yaml:"trigger"`

	// Channels lists monitored neurons. Empty means discover them.
	Channels []ChannelConfig `json:"channels,omitempty" yaml:"channels,omitempty"`

	// Speed configures the tick-period check.
	Speed SpeedConfig `json:"speed" yaml:"speed"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures the analysis database.
	Store StoreConfig `json:"store" yaml:"store"`
}

// RecordConfig names the files read and written in the record directory.
type RecordConfig struct {
	// File is the event log inside each engine directory.
	File string `json:"file" yaml:"file"`

	// CleanFile is the full-run table written by reconstruction.
	CleanFile string `json:"clean_file" yaml:"clean_file"`

	// DeploymentMap is the engine map, relative to the record directory
	// unless absolute.
	DeploymentMap string `json:"deployment_map" yaml:"deployment_map"`

	// OutputDir receives the tables. Empty means the record directory.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
}

// TriggerConfig selects the epoch trigger. With no neuron set there is no
// trigger and the run is one epoch.
type TriggerConfig struct {
	// Neuron is the trigger's global index for reconstruction and its
	// engine-local index for epoch models.
	Neuron *int `json:"neuron,omitempty" yaml:"neuron,omitempty"`

	// Kind is the event kind name, "Spike" by default.
	Kind string `json:"kind" yaml:"kind"`
}

// ChannelConfig is one monitored neuron. When Engine is set, Index is local
// to that engine and is translated through the deployment map.
type ChannelConfig struct {
	Name   string `json:"name" yaml:"name"`
	Index  int    `json:"index" yaml:"index"`
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// SpeedConfig configures the tick-period check.
type SpeedConfig struct {
	// TargetPeriod is the intended wall-clock time per tick. Zero skips
	// the on-target check.
	TargetPeriod time.Duration `json:"target_period,omitempty" yaml:"target_period,omitempty"`

	// Tolerance is the allowed relative error, 0 to 1.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace". Debug and trace also
	// write the decision trace.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures the analysis database.
type StoreConfig struct {
	// Path of the SQLite file. Empty means <record>/.spikerecon/analysis.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with the standard file names.
func Default() *Config {
	return &Config{
		Record: RecordConfig{
			File:          constants.DefaultRecordFile,
			CleanFile:     constants.DefaultCleanRecordFile,
			DeploymentMap: constants.DefaultDeploymentMapFile,
		},
		Trigger: TriggerConfig{
			Kind: models.KindSpike.String(),
		},
		Speed: SpeedConfig{
			Tolerance: constants.DefaultTickTolerance,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads <root>/spikerecon.yaml when it exists and applies environment
// overrides.
func Load(root string) (*Config, error) {
	config := Default()

	path := filepath.Join(root, constants.DefaultConfigFile)
	if _, statErr := os.Stat(path); statErr == nil {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFile reads an explicit config file and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Store.Path = os.ExpandEnv(config.Store.Path)
	config.Record.OutputDir = os.ExpandEnv(config.Record.OutputDir)
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Record.File == "" {
		return fmt.Errorf("record.file must not be empty")
	}
	if strings.ContainsAny(c.Record.File, `/\`) {
		return fmt.Errorf("record.file must be a file name, got %q", c.Record.File)
	}
	if c.Record.CleanFile != "" && strings.ContainsAny(c.Record.CleanFile, `/\`) {
		return fmt.Errorf("record.clean_file must be a file name, got %q", c.Record.CleanFile)
	}

	if _, err := c.TriggerKind(); err != nil {
		return err
	}
	if c.Trigger.Neuron != nil && *c.Trigger.Neuron < 0 {
		return fmt.Errorf("trigger.neuron must be non-negative, got %d", *c.Trigger.Neuron)
	}

	for i, ch := range c.Channels {
		if ch.Index < 0 {
			return fmt.Errorf("channels[%d]: index must be non-negative, got %d", i, ch.Index)
		}
	}

	if c.Speed.Tolerance < 0 || c.Speed.Tolerance > 1 {
		return fmt.Errorf("speed.tolerance must be between 0 and 1, got %f", c.Speed.Tolerance)
	}
	if c.Speed.TargetPeriod < 0 {
		return fmt.Errorf("speed.target_period must be non-negative, got %v", c.Speed.TargetPeriod)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// TriggerKind parses Trigger.Kind, defaulting to Spike.
func (c *Config) TriggerKind() (models.EventKind, error) {
	if c.Trigger.Kind == "" {
		return models.KindSpike, nil
	}
	kind, ok := models.ParseEventKind(c.Trigger.Kind)
	if !ok {
		return 0, fmt.Errorf("invalid trigger.kind: %s", c.Trigger.Kind)
	}
	return kind, nil
}

// ResolveChannels returns the monitored channels in global index space.
// Channels without a name are named after their global index.
func (c *Config) ResolveChannels(bindings []models.EngineBinding) ([]models.Channel, error) {
	channels := make([]models.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		index := ch.Index
		if ch.Engine != "" {
			global, err := deployment.Global(bindings, ch.Engine, ch.Index)
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			index = global
		}
		name := ch.Name
		if name == "" {
			name = models.DefaultChannelName(index)
		}
		channels = append(channels, models.Channel{Name: name, Index: index})
	}
	return channels, nil
}

// DeploymentMapPath resolves Record.DeploymentMap against root.
func (c *Config) DeploymentMapPath(root string) string {
	if filepath.IsAbs(c.Record.DeploymentMap) {
		return c.Record.DeploymentMap
	}
	return filepath.Join(root, c.Record.DeploymentMap)
}

// OutputDir returns where tables are written.
func (c *Config) OutputDir(root string) string {
	if c.Record.OutputDir != "" {
		return c.Record.OutputDir
	}
	return root
}

// StorePath returns the analysis database path.
func (c *Config) StorePath(root string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(root, constants.StateDir, constants.AnalysisDBFile)
}

// applyEnvOverrides applies SPIKERECON_* environment variables.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SPIKERECON_RECORD_FILE"); v != "" {
		config.Record.File = v
	}
	if v := os.Getenv("SPIKERECON_CLEAN_FILE"); v != "" {
		config.Record.CleanFile = v
	}
	if v := os.Getenv("SPIKERECON_DEPLOYMENT_MAP"); v != "" {
		config.Record.DeploymentMap = v
	}
	if v := os.Getenv("SPIKERECON_OUTPUT_DIR"); v != "" {
		config.Record.OutputDir = v
	}

	if v := os.Getenv("SPIKERECON_TRIGGER_NEURON"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Trigger.Neuron = &n
		}
	}
	if v := os.Getenv("SPIKERECON_TRIGGER_KIND"); v != "" {
		config.Trigger.Kind = v
	}

	if v := os.Getenv("SPIKERECON_TARGET_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Speed.TargetPeriod = d
		}
	}
	if v := os.Getenv("SPIKERECON_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Speed.Tolerance = f
		}
	}

	if v := os.Getenv("SPIKERECON_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SPIKERECON_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
}
