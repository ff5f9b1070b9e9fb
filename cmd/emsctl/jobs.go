package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/controlplane-com/pool-orchestrator/pkg/api/actions"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

func newHealthCmd(poolID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the platform is reachable with the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(settingsFromEnv(), *poolID)
			if err != nil {
				return err
			}
			if err := actions.Health(cmd.Context(), ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", ctx.Client.BaseURL())
			return nil
		},
	}
}

func newExecuteJobCmd(poolID *string) *cobra.Command {
	var (
		transformations []string
		extractions     []string
		dataModels      []string
		full            bool
		noWait          bool
	)

	cmd := &cobra.Command{
		Use:   "execute-job <job-id>",
		Short: "Execute a data job and wait for it to finish",
		Long:  "Executes a data job, optionally restricted to some transformations, extractions or data model executions. Fails when the job is already running.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := operation.PipelineExecution{
				PoolID:          *poolID,
				JobID:           args[0],
				Transformations: transformations,
				Mode:            types.ExtractionModeDelta,
			}
			if full {
				op.Mode = types.ExtractionModeFull
			}
			for _, id := range extractions {
				op.Extractions = append(op.Extractions, types.ExtractionConfiguration{ExtractionID: id})
			}
			for _, id := range dataModels {
				op.DataModels = append(op.DataModels, types.DataModelExecutionConfiguration{DataModelExecutionID: id})
			}

			ctx, err := newContext(settingsFromEnv(), *poolID)
			if err != nil {
				return err
			}
			run, err := actions.ExecutePipeline(cmd.Context(), ctx, op, !noWait)
			if err != nil {
				return err
			}
			printRun(cmd, run)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&transformations, "transformation", nil, "transformation id to run (repeatable)")
	cmd.Flags().StringSliceVar(&extractions, "extraction", nil, "extraction id to run (repeatable)")
	cmd.Flags().StringSliceVar(&dataModels, "data-model", nil, "data model execution id to run (repeatable)")
	cmd.Flags().BoolVar(&full, "full", false, "run extractions in FULL mode instead of DELTA")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the job is triggered")
	return cmd
}

func newReloadModelCmd(poolID *string) *cobra.Command {
	var (
		tables    []string
		fromCache bool
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "reload-model <data-model-id>",
		Short: "Reload a data model, fully or for some tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromCache && len(tables) > 0 {
				return fmt.Errorf("--from-cache applies to full reloads only")
			}
			ctx, err := newContext(settingsFromEnv(), *poolID)
			if err != nil {
				return err
			}
			op := operation.ModelReload{PoolID: *poolID, ModelID: args[0], TableIDs: tables, ForceComplete: len(tables) == 0 && !fromCache}
			run, err := actions.ReloadModel(cmd.Context(), ctx, op, !noWait)
			if err != nil {
				return err
			}
			printRun(cmd, run)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tables, "table", nil, "table id for a partial reload (repeatable)")
	cmd.Flags().BoolVar(&fromCache, "from-cache", false, "reload from cache instead of a complete reload")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the reload is triggered")
	return cmd
}

func newCancelCmd(poolID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job|model|push> <id>",
		Short: "Cancel a running data job, data model reload or push job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var op operation.Operation
			switch strings.ToLower(args[0]) {
			case "job":
				op = operation.PipelineExecution{PoolID: *poolID, JobID: args[1]}
			case "model":
				op = operation.ModelReload{PoolID: *poolID, ModelID: args[1]}
			case "push":
				op = operation.BulkPushExecution{PoolID: *poolID, PushJobID: args[1]}
			default:
				return fmt.Errorf("unknown operation kind %q (want job, model or push)", args[0])
			}

			ctx, err := newContext(settingsFromEnv(), *poolID)
			if err != nil {
				return err
			}
			if err := actions.Cancel(cmd.Context(), ctx, op); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s %s\n", op.Kind(), args[1])
			return nil
		},
	}
}

func printRun(cmd *cobra.Command, run *operation.Run) {
	op := run.Operation()
	if status, ok := run.LastStatus(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%s)\n", op.Kind(), op.ID(), run.State(), status)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", op.Kind(), op.ID(), run.State())
}
