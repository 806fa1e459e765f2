package terminal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/de-tools/scorecard/pkg/runtime/terminal/commands"
	"github.com/de-tools/scorecard/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

const DefaultConfigPath = "scorecard.yaml"

// CLI represents the command-line interface
type CLI struct {
	configPath string
	newApp     commands.AppFactory
	now        func() time.Time
	reporter   *export.Reporter
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	AppFactory commands.AppFactory
	Output     io.Writer
	Now        func() time.Time
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AppFactory == nil {
		opts.AppFactory = commands.NewAppFactory(opts.Now)
	}

	cli := &CLI{
		newApp:   opts.AppFactory,
		now:      opts.Now,
		reporter: export.NewReporter(opts.Output),
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args, for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scorecard",
		Short:         "Weekly KPI scorecard: compute, store and publish",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", DefaultConfigPath, "Path to the scorecard config file")

	cmd.AddCommand(commands.NewRunCmd(&cli.configPath, cli.newApp, cli.reporter))
	cmd.AddCommand(commands.NewPublishCmd(&cli.configPath, cli.newApp, cli.reporter))
	cmd.AddCommand(commands.NewPeriodCmd(cli.now, cli.reporter))
	cmd.AddCommand(commands.NewListCmd(&cli.configPath, cli.newApp, cli.reporter))

	return cmd
}
