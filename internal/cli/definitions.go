package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/metamigrate/internal/migrate"
)

// DefinitionsOptions holds flags for the definitions command.
type DefinitionsOptions struct {
	*RootOptions
	Strict bool
}

// NewDefinitionsCommand creates the definitions command.
func NewDefinitionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DefinitionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Create the snapshot's definitions in the destination store",
		Long: `Create every definition of the snapshot in the destination store.

The creation order is planned first (sequence.json is rewritten). Each
definition is created with the reference fields that already resolve in the
destination; the remaining fields are added once their targets exist.

Failures are reported and the run continues. With --strict the command exits
with status 1 when any record failed.

Example:
  metamigrate definitions --journal ./migrate.db
  metamigrate definitions --strict`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinitions(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any record failed")

	return cmd
}

func runDefinitions(opts *DefinitionsOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd, needs{source: true, destination: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd, s.logger)
	defer cancel()

	plan, err := buildPlan(ctx, s)
	if err != nil {
		return err
	}

	m := migrate.NewDefinitionMigrator(s.snap, s.destination, s.resolver(), s.options(opts.RootOptions, false))
	report, err := m.Run(ctx, plan.Order)
	return finish(s, report, err, opts.Strict, writeReport)
}
