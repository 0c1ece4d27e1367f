package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/migrate"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Strict bool
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export the source store's definitions and metaobjects",
		Long: `Export every metaobject definition and instance of the source store.

Files are written under <snapshot_dir>/<store_name>/:
  metaobjects_definitions/<type>/definition.json
  metaobjects_definitions/<type>/metaobjects/<handle>.json
  complete/<type>.json

Example:
  metamigrate snapshot
  metamigrate snapshot --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any definition failed to export")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd, needs{source: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd, s.logger)
	defer cancel()

	s.logger.Info("exporting source store", zap.String("dir", s.snap.Root()))
	exporter := migrate.NewExporter(s.source, s.snap, s.cfg.PageSize, s.options(opts.RootOptions, false))
	report, err := exporter.Run(ctx)
	return finish(s, report, err, opts.Strict, writeReport)
}
