package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/microkernel/pkg/gc"
	"github.com/oneconcern/microkernel/pkg/kernel"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Copy the live nodes of the repository to another repository",
	Long: `Copy the nodes reachable from the head revision to another repository, then make
the copied revision the head of that repository.

Nodes of past revisions are not copied: the target repository holds the current tree only,
and may replace the configured one once the copy is done. With --clear-source, the configured
repository is emptied after the switch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := *config
		target.Dir = params.gc.targetDir
		if params.gc.targetBackend != "" {
			target.Backend = params.gc.targetBackend
		}
		target.MetricsAddr = ""
		if err := target.validate(); err != nil {
			return err
		}
		return collect(cmd.Context(), cmd, config, &target)
	},
}

func collect(ctx context.Context, cmd *cobra.Command, from, to *Config) (err error) {
	e, srv, err := newEnv(from)
	if err != nil {
		return err
	}
	if srv != nil {
		defer func() { err = multierr.Append(err, srv.Close()) }()
	}

	source, err := openStore(ctx, from, e)
	if err != nil {
		return err
	}
	dest, err := openStore(ctx, to, e)
	if err != nil {
		return multierr.Append(err, source.Close())
	}

	collector := gc.New(source, dest,
		gc.Logger(e.l),
		gc.Metrics(e.m),
		gc.ClearOnStop(params.gc.clearSource),
	)
	k := kernel.New(collector, kernel.Logger(e.l))
	defer func() { err = multierr.Append(err, k.Close()) }()

	res, err := collector.Start(ctx)
	if err != nil {
		return err
	}
	if err = collector.Stop(ctx); err != nil {
		return err
	}
	head, err := k.GetHeadRevision(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%v\nhead: %v\n", res, head)
	return err
}

func init() {
	requireFlags(gcCmd, addTargetFlags(gcCmd))
	gcCmd.Flags().BoolVar(&params.gc.clearSource, "clear-source", false, "Empty the configured repository once the live nodes are copied")
	rootCmd.AddCommand(gcCmd)
}
