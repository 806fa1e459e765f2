package commands

import (
	"fmt"

	"github.com/de-tools/scorecard/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type RunCmd struct {
	configPath *string
	kpiNumber  string
	newApp     AppFactory
	reporter   *export.Reporter
}

func NewRunCmd(configPath *string, newApp AppFactory, reporter *export.Reporter) *cobra.Command {
	rc := &RunCmd{configPath: configPath, newApp: newApp, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute and store the scorecard KPIs for the current week",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.kpiNumber, "kpi", "", "Run only this KPI number")

	return cmd
}

func (rc *RunCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := rc.newApp(ctx, *rc.configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	summary, err := a.Run(ctx, rc.kpiNumber)
	if err != nil {
		return err
	}
	if err := rc.reporter.HandleRun(summary); err != nil {
		return fmt.Errorf("failed to print run summary: %w", err)
	}
	if !summary.OK() {
		return fmt.Errorf("%d of %d: %w", summary.Failed(), len(summary.Results), ErrKpiFailed)
	}
	return nil
}
