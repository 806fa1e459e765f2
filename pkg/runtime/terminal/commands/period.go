package commands

import (
	"fmt"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/runtime/terminal/export"
	"github.com/de-tools/scorecard/pkg/services/period"
	"github.com/spf13/cobra"
)

type PeriodCmd struct {
	date     string
	now      func() time.Time
	reporter *export.Reporter
}

func NewPeriodCmd(now func() time.Time, reporter *export.Reporter) *cobra.Command {
	pc := &PeriodCmd{now: now, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Show the reporting period of a date",
		RunE:  pc.run,
	}

	cmd.Flags().StringVar(&pc.date, "date", "", "Reference date (YYYY-MM-DD); defaults to today")

	return cmd
}

func (pc *PeriodCmd) run(_ *cobra.Command, _ []string) error {
	ref := pc.now()
	if pc.date != "" {
		d, err := domain.ParseDate(pc.date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		ref = d
	}
	return pc.reporter.HandlePeriod(period.Resolve(ref))
}
