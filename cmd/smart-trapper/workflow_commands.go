package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/smart-trapper/internal/workflow"
)

func newWorkflowCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newRunCommand(ctx),
		newExportCommand(ctx),
		newImportCommand(ctx),
		newOverlayCommand(ctx),
	}
}

// setup builds a controller for cmd. Logs go to stderr.
func setup(ctx *commandContext, cmd *cobra.Command, op workflow.Operator) (*workflow.Controller, error) {
	logger, err := ctx.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	factory, err := ctx.controllerFactory(logger)
	if err != nil {
		return nil, err
	}
	return factory(op), nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags operatorFlags
	cmd := &cobra.Command{
		Use:   "run <artwork-bundle>",
		Short: "Export plate masks, run the trapping engine and merge the traps back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := flags.operator(cmd)
			if err != nil {
				return err
			}
			c, err := setup(ctx, cmd, op)
			if err != nil {
				return err
			}
			report, err := c.Run(cmd.Context(), args[0])
			if err != nil {
				switch {
				case report != nil && report.JobDir != "":
					return fmt.Errorf("%w\njob folder: %s", err, report.JobDir)
				case report != nil && report.RunLog != "":
					return fmt.Errorf("%w\nrun log: %s", err, report.RunLog)
				}
				return err
			}
			printRunReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags operatorFlags
	cmd := &cobra.Command{
		Use:   "export <artwork-bundle>",
		Short: "Write plate masks and job.json into a new job folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := flags.operator(cmd)
			if err != nil {
				return err
			}
			c, err := setup(ctx, cmd, op)
			if err != nil {
				return err
			}
			report, err := c.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRunReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <artwork-bundle> <job-folder>",
		Short: "Rebuild trap layers from a job folder's traps.json",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(ctx, cmd, nil)
			if err != nil {
				return err
			}
			report, err := c.Import(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printRunReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newOverlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "overlay <artwork-bundle> <job-folder>",
		Short: "Place the engine's debug images into a DEBUG__MASKS group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(ctx, cmd, nil)
			if err != nil {
				return err
			}
			n, err := c.Overlay(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No debug images found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Placed %d debug image(s)\n", n)
			return nil
		},
	}
}
