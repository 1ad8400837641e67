package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/smart-trapper/internal/config"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/server"
	"github.com/ironsheep/smart-trapper/internal/workflow"
)

func newWidthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "width <resolution>",
		Short: "Print the default trap width for a resolution in ppi",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil || res <= 0 {
				return fmt.Errorf("invalid resolution %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			w := workflow.DefaultTrapWidth(res, cfg.Trap.BaselineWidth, cfg.Trap.BaselineResolution)
			fmt.Fprintln(cmd.OutOrStdout(), w)
			return nil
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "inspect <job-folder>",
		Short:       "Check the mask and trap images referenced by a job folder",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := workflow.InspectJob(pimaging.NewImageCache(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(report.Files))
			for _, f := range report.Files {
				status := "ok"
				if f.Problem != "" {
					status = f.Problem
				}
				rows = append(rows, []string{f.Role, f.Name, f.Path, boundsLabel(f), status})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%dx%d, %s)\n", report.Document, report.Width, report.Height, report.Mode)
			fmt.Fprintln(out, renderTable([]string{"Role", "Plate", "File", "Content", "Status"}, rows, nil))
			if !report.Trapped {
				fmt.Fprintln(out, "No traps.json yet")
			}
			if report.Problems > 0 {
				return fmt.Errorf("%d problem(s) found", report.Problems)
			}
			return nil
		},
	}
}

func boundsLabel(f workflow.FileCheck) string {
	if f.Content.Empty() {
		return "-"
	}
	r := f.Content
	return fmt.Sprintf("%d,%d-%d,%d", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the trapping tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			factory, err := ctx.controllerFactory(logger)
			if err != nil {
				return err
			}
			logger.Debug("mcp server starting", "version", Version, "commit", GitCommit)
			srv := server.New(cfg, factory, logger, Version)
			return srv.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.engine (or export SMART_TRAPPER_ENGINE) to the trapping engine before running.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprint(out, renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"jobs_dir", cfg.Paths.JobsDir},
					{"engine", cfg.Paths.Engine},
					{"baseline", fmt.Sprintf("%gpx @ %g ppi", cfg.Trap.BaselineWidth, cfg.Trap.BaselineResolution)},
					{"scan_steps", fmt.Sprint(cfg.Trap.ScanSteps)},
					{"timeout", timeoutLabel(cfg)},
				},
				nil,
			))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func timeoutLabel(cfg *config.Config) string {
	if d := cfg.EngineTimeout(); d > 0 {
		return d.String()
	}
	return "none"
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "smart-trapper %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
