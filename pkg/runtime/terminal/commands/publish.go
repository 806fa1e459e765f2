package commands

import (
	"fmt"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type PublishCmd struct {
	configPath *string
	lastSunday string
	newApp     AppFactory
	reporter   *export.Reporter
}

func NewPublishCmd(configPath *string, newApp AppFactory, reporter *export.Reporter) *cobra.Command {
	pc := &PublishCmd{configPath: configPath, newApp: newApp, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the stored scorecard of a week to the sheet",
		RunE:  pc.run,
	}

	cmd.Flags().StringVar(&pc.lastSunday, "last-sunday", "",
		"Period to publish (YYYY-MM-DD); defaults to the period stored for the current week")

	return cmd
}

func (pc *PublishCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var target *time.Time
	if pc.lastSunday != "" {
		sunday, err := domain.ParseDate(pc.lastSunday)
		if err != nil {
			return fmt.Errorf("invalid --last-sunday: %w", err)
		}
		target = &sunday
	}

	a, err := pc.newApp(ctx, *pc.configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result, err := a.Publish(ctx, target)
	if err != nil {
		return err
	}
	return pc.reporter.HandlePublish(result)
}
