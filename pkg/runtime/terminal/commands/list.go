package commands

import (
	"fmt"

	"github.com/de-tools/scorecard/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type ListCmd struct {
	configPath *string
	newApp     AppFactory
	reporter   *export.Reporter
}

func NewListCmd(configPath *string, newApp AppFactory, reporter *export.Reporter) *cobra.Command {
	lc := &ListCmd{configPath: configPath, newApp: newApp, reporter: reporter}
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered KPIs in execution order",
		RunE:  lc.run,
	}
}

func (lc *ListCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := lc.newApp(ctx, *lc.configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	registry := a.Registry()
	if registry.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No KPIs configured")
		return nil
	}
	for _, stale := range registry.StaleDependencies() {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", stale)
	}
	return lc.reporter.HandleKpis(registry.Definitions())
}
