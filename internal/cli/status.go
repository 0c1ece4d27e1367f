package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/metamigrate/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	RunID string
	Limit int
}

// Status is the journal view printed by the status command.
type Status struct {
	Runs        []store.Run             `json:"runs"`
	Run         *store.Run              `json:"run,omitempty"`
	Definitions []store.DefinitionState `json:"definitions,omitempty"`
	Deferred    []store.DeferredField   `json:"deferred,omitempty"`
	Failures    []store.Failure         `json:"failures,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded runs from the journal",
		Long: `List the most recent runs recorded in the journal and show the details of
one run: the final state of each definition, the deferred fields and the
failures.

Example:
  metamigrate status --journal ./migrate.db
  metamigrate status --journal ./migrate.db --run 0192f8c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show (default: the latest)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of runs to list (0 for all)")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd, needs{journal: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	st := &Status{}

	st.Runs, err = s.journal.Runs(ctx, opts.Limit)
	if err != nil {
		return fail(s.out, CodeJournal, "failed to read runs", err)
	}
	if st.Runs == nil {
		st.Runs = []store.Run{}
	}

	runID := opts.RunID
	if runID == "" && len(st.Runs) > 0 {
		runID = st.Runs[0].ID
	}
	if runID != "" {
		run, ok, err := s.journal.Run(ctx, runID)
		if err != nil {
			return fail(s.out, CodeJournal, "failed to read run", err)
		}
		if !ok {
			return fail(s.out, CodeJournal, fmt.Sprintf("run %s not found", runID), nil)
		}
		st.Run = &run

		if st.Definitions, err = s.journal.DefinitionStates(ctx, runID); err != nil {
			return fail(s.out, CodeJournal, "failed to read definition states", err)
		}
		if st.Deferred, err = s.journal.DeferredFields(ctx, runID); err != nil {
			return fail(s.out, CodeJournal, "failed to read deferred fields", err)
		}
		if st.Failures, err = s.journal.Failures(ctx, runID); err != nil {
			return fail(s.out, CodeJournal, "failed to read failures", err)
		}
	}

	if err := s.out.Emit(st, func(w io.Writer) { writeStatus(w, st) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

func writeStatus(w io.Writer, st *Status) {
	if len(st.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "Runs:\n")
	for _, r := range st.Runs {
		fmt.Fprintf(w, "  %s %s %s: %d failure(s)\n", r.ID, r.Kind, r.Status, r.Failures)
	}

	if st.Run == nil {
		return
	}
	fmt.Fprintf(w, "\nRun %s (%s, %s)\n", st.Run.ID, st.Run.Kind, st.Run.Status)

	if len(st.Definitions) > 0 {
		fmt.Fprintf(w, "\nDefinitions:\n")
		for _, d := range st.Definitions {
			switch {
			case d.Message != "":
				fmt.Fprintf(w, "  %s: %s (%s)\n", d.Type, d.State, d.Message)
			case d.DestinationID != "":
				fmt.Fprintf(w, "  %s: %s (%s)\n", d.Type, d.State, d.DestinationID)
			default:
				fmt.Fprintf(w, "  %s: %s\n", d.Type, d.State)
			}
		}
	}

	if len(st.Deferred) > 0 {
		fmt.Fprintf(w, "\nDeferred fields:\n")
		for _, f := range st.Deferred {
			status := "not reconciled"
			if f.Reconciled {
				status = "reconciled"
			}
			fmt.Fprintf(w, "  %s.%s: %s\n", f.OwnerType, f.FieldKey, status)
		}
	}

	if len(st.Failures) > 0 {
		fmt.Fprintf(w, "\nFailures:\n")
		for _, f := range st.Failures {
			fmt.Fprintf(w, "  [%s] %s %s: %s\n", f.Kind, f.Operation, f.Subject, f.Message)
		}
	}
}
