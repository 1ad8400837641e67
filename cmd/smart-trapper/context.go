package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ironsheep/smart-trapper/internal/config"
	"github.com/ironsheep/smart-trapper/internal/engine"
	"github.com/ironsheep/smart-trapper/internal/host"
	"github.com/ironsheep/smart-trapper/internal/logging"
	"github.com/ironsheep/smart-trapper/internal/workflow"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to w with the configured level and format.
func (c *commandContext) logger(w io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	color := false
	if f, ok := w.(*os.File); ok {
		color = logging.IsTerminal(f)
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: w,
		Color:  color,
	})
}

// controllerFactory returns a factory building one controller, with its own
// editor session, per invocation.
func (c *commandContext) controllerFactory(logger *slog.Logger) (func(workflow.Operator) *workflow.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	runner, err := engine.New(cfg.Paths.Engine, cfg.EngineTimeout(), logger)
	if err != nil {
		return nil, err
	}
	return func(op workflow.Operator) *workflow.Controller {
		return workflow.New(host.NewSession(logger), cfg, runner, op, logger)
	}, nil
}

// operatorFlags carry the answers a run would otherwise prompt for.
type operatorFlags struct {
	mode  string
	width string
	yes   bool
}

func (f *operatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "Trapping mode for overlapping artwork: plates or overprint")
	cmd.Flags().StringVar(&f.width, "width", "", "Trap width in pixels (default scales with resolution)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Accept defaults without prompting")
}

// operator prompts on the terminal unless the answers were given as flags
// or stdin is not interactive.
func (f *operatorFlags) operator(cmd *cobra.Command) (workflow.Operator, error) {
	in := cmd.InOrStdin()
	interactive := false
	if file, ok := in.(*os.File); ok {
		interactive = logging.IsTerminal(file)
	}
	if f.yes || !interactive || cmd.Flags().Changed("mode") || cmd.Flags().Changed("width") {
		mode, err := workflow.ParseMode(f.mode)
		if err != nil {
			return nil, err
		}
		return workflow.FlagOperator{Mode: mode, Width: f.width}, nil
	}
	return workflow.NewTerminalOperator(in, cmd.ErrOrStderr()), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
