package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/spikerecon/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults, the config file and
SPIKERECON_* environment variables are applied.

The config file is <root>/spikerecon.yaml unless --config is given.

Examples:
  spikerecon config list                  # Show all settings
  spikerecon config get trigger.neuron    # Get a specific setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
	)
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			if s.jsonOut {
				return s.encode(s.cfg)
			}
			return writeConfigYAML(s.out, s.cfg)
		},
	}
}

func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			value, found := getConfigValue(s.cfg, s.root, key)
			if !found {
				if s.jsonOut {
					return s.encode(map[string]any{
						"error": "key not found",
						"key":   key,
					})
				}
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if s.jsonOut {
				return s.encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(s.out, "%s = %v\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key. Paths
// are reported resolved against root.
func getConfigValue(cfg *config.Config, root, key string) (any, bool) {
	switch key {
	case "record.file":
		return cfg.Record.File, true
	case "record.clean_file":
		return cfg.Record.CleanFile, true
	case "record.deployment_map":
		return cfg.DeploymentMapPath(root), true
	case "record.output_dir":
		return cfg.OutputDir(root), true
	case "trigger.neuron":
		if cfg.Trigger.Neuron == nil {
			return "(not set)", true
		}
		return *cfg.Trigger.Neuron, true
	case "trigger.kind":
		return cfg.Trigger.Kind, true
	case "channels":
		return len(cfg.Channels), true
	case "speed.target_period":
		return cfg.Speed.TargetPeriod.String(), true
	case "speed.tolerance":
		return cfg.Speed.Tolerance, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "store.path":
		return cfg.StorePath(root), true
	default:
		return nil, false
	}
}
