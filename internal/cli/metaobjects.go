package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/migrate"
)

// MetaobjectsOptions holds flags for the metaobjects command.
type MetaobjectsOptions struct {
	*RootOptions
	Strict        bool
	SkipUnchanged bool
}

// NewMetaobjectsCommand creates the metaobjects command.
func NewMetaobjectsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetaobjectsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "metaobjects",
		Short: "Upsert the snapshot's metaobjects into the destination store",
		Long: `Upsert every metaobject of the snapshot into the destination store, type
by type in the order of sequence.json.

Product, collection and file references are rewritten to the destination's
IDs. A reference that cannot be resolved is dropped from the instance and
reported. Upserts are keyed by handle and type, so the command can be re-run.

With --skip-unchanged and a journal, instances whose rewritten payload
matches the last successful upsert are not sent again.

Example:
  metamigrate metaobjects
  metamigrate metaobjects --journal ./migrate.db --skip-unchanged`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetaobjects(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any record failed")
	cmd.Flags().BoolVar(&opts.SkipUnchanged, "skip-unchanged", false, "skip instances whose payload matches the journal")

	return cmd
}

func runMetaobjects(opts *MetaobjectsOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd, needs{source: true, destination: true, journal: opts.SkipUnchanged})
	if err != nil {
		return err
	}
	defer s.Close()

	seq, err := s.snap.ReadSequence()
	if err != nil {
		return fail(s.out, CodeSnapshot, "failed to read sequence (run plan first)", err)
	}
	s.logger.Info("migrating metaobjects", zap.Strings("sequence", seq))

	ctx, cancel := commandContext(cmd, s.logger)
	defer cancel()

	m := migrate.NewInstanceMigrator(s.snap, s.destination, s.resolver(), s.options(opts.RootOptions, opts.SkipUnchanged))
	report, err := m.Run(ctx, seq)
	return finish(s, report, err, opts.Strict, writeReport)
}
