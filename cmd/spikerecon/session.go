package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/spikerecon/internal/config"
	"github.com/nvandessel/spikerecon/internal/constants"
	"github.com/nvandessel/spikerecon/internal/deployment"
	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/logging"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/pathutil"
	"github.com/nvandessel/spikerecon/internal/record"
	"github.com/spf13/cobra"
)

// session holds what every record command resolves from the global flags.
type session struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	jsonOut bool
}

func newSession(cmd *cobra.Command) (*session, error) {
	root, _ := cmd.Flags().GetString("root")
	cfgPath, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	jsonOut, _ := cmd.Flags().GetBool("json")

	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	if jsonOut {
		logger = logging.NewJSONLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	}

	return &session{
		root:    root,
		cfg:     cfg,
		logger:  logger,
		out:     cmd.OutOrStdout(),
		jsonOut: jsonOut,
	}, nil
}

// stateDir is where the decision trace and the analysis database live.
func (s *session) stateDir() string {
	return filepath.Join(s.root, constants.StateDir)
}

// bindings loads the deployment map. Layout problems are logged, not fatal.
func (s *session) bindings() ([]models.EngineBinding, error) {
	bindings, err := deployment.Load(s.cfg.DeploymentMapPath(s.root))
	if err != nil {
		return nil, err
	}
	if err := deployment.Validate(bindings); err != nil {
		s.logger.Warn("deployment map has layout issues", "error", err)
	}
	s.logger.Debug("loaded deployment map", "engines", len(bindings))
	return bindings, nil
}

// selectEngines returns the bindings named in engines, in the order given,
// or all bindings when engines is empty.
func selectEngines(bindings []models.EngineBinding, engines []string) ([]models.EngineBinding, error) {
	if len(engines) == 0 {
		return bindings, nil
	}
	selected := make([]models.EngineBinding, 0, len(engines))
	for _, name := range engines {
		b, ok := deployment.Find(bindings, name)
		if !ok {
			return nil, fmt.Errorf("engine %s is not in the deployment map", name)
		}
		selected = append(selected, b)
	}
	return selected, nil
}

// analyze builds the epoch model of each engine from its own log. Engines
// are read unshifted and in local neuron space, so the trigger is a local
// index and replicas line up.
func (s *session) analyze(bindings []models.EngineBinding, trigger int) ([]*epochmodel.EngineAnalysis, error) {
	analyses := make([]*epochmodel.EngineAnalysis, 0, len(bindings))
	for _, b := range bindings {
		path, err := pathutil.EngineRecordPath(s.root, b.Engine, s.cfg.Record.File)
		if err != nil {
			return nil, fmt.Errorf("resolving record for engine %s: %w", b.Engine, err)
		}
		src, err := record.Open(path, models.EngineBinding{Engine: b.Engine, NeuronCount: b.NeuronCount})
		if err != nil {
			return nil, err
		}

		a := epochmodel.Analyze(src, b.Engine, trigger)
		src.Close()

		s.logger.Debug("built epoch model", "engine", b.Engine, "epochs", len(a.Epochs), "spikes", a.Spikes, "dropped", a.Dropped)
		if a.Dropped > 0 {
			s.logger.Warn("adjustments without a preceding spike were dropped", "engine", b.Engine, "count", a.Dropped)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

func (s *session) encode(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// triggerNeuron returns the --trigger-neuron flag when given, else the
// configured trigger.
func triggerNeuron(cmd *cobra.Command, cfg *config.Config) (int, bool) {
	if cmd.Flags().Changed("trigger-neuron") {
		n, _ := cmd.Flags().GetInt("trigger-neuron")
		return n, n >= 0
	}
	if cfg.Trigger.Neuron != nil {
		return *cfg.Trigger.Neuron, true
	}
	return 0, false
}

// parseChannel parses a --channel value of the form [name=]index[@engine].
func parseChannel(s string) (config.ChannelConfig, error) {
	var ch config.ChannelConfig
	spec := strings.TrimSpace(s)

	if name, rest, ok := strings.Cut(spec, "="); ok {
		ch.Name = strings.TrimSpace(name)
		spec = rest
	}
	if idx, engine, ok := strings.Cut(spec, "@"); ok {
		ch.Engine = strings.TrimSpace(engine)
		if ch.Engine == "" {
			return ch, fmt.Errorf("channel %q: empty engine after @", s)
		}
		spec = idx
	}

	n, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil || n < 0 {
		return ch, fmt.Errorf("channel %q: index must be a non-negative integer", s)
	}
	ch.Index = n
	return ch, nil
}
