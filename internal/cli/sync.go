package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfreitas-dev/hrbridge/internal/pipeline"
)

// NewSyncCommand creates the sync command, which runs every stage.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the full synchronization",
		Long: `Run every synchronization stage in order: role and department
catalogs, active employees, vacations, leaves, then terminations.

Example:
  hrbridge sync -c hrbridge.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, cmd, pipeline.AllStages)
		},
	}
}

// stageSpec describes one per-stage command.
type stageSpec struct {
	Use   string
	Short string
	Stage pipeline.Stage
}

// stageCommands maps each per-stage command to its pipeline stage.
var stageCommands = []stageSpec{
	{"roles", "Sync only the role catalog", pipeline.StageRoles},
	{"departments", "Sync only the department catalog", pipeline.StageDepartments},
	{"employees", "Sync only active employee records", pipeline.StageEmployees},
	{"vacations", "Sync only vacation absences", pipeline.StageVacations},
	{"leaves", "Sync only generic leave absences", pipeline.StageLeaves},
	{"terminations", "Deliver only pending termination events", pipeline.StageTerminations},
}

func newStageCommand(opts *RootOptions, sc stageSpec) *cobra.Command {
	return &cobra.Command{
		Use:   sc.Use,
		Short: sc.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, cmd, []pipeline.Stage{sc.Stage})
		},
	}
}

func runStages(opts *RootOptions, cmd *cobra.Command, stages []pipeline.Stage) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.runner.Run(cmd.Context(), stages)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d source records (cache hit: %v)\n",
		report.RunID, report.SourceRecords, report.CacheHit)
	for _, sr := range report.Stages {
		fmt.Fprintf(out, "  %-13s records=%d sent=%d skipped=%d failed=%d\n",
			sr.Stage, sr.Records, sr.Sent, sr.Skipped, sr.Failed)
		if sr.Error != "" {
			fmt.Fprintf(out, "  %-13s error: %s\n", sr.Stage, sr.Error)
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "sync finished with errors", runErr)
	}
	return nil
}
