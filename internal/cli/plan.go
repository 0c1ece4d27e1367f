package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/graph"
)

// Plan is the creation order derived from a snapshot.
type Plan struct {
	Sequence   []string            `json:"sequence"`
	Order      graph.Order         `json:"order"`
	Cycles     []graph.Cycle       `json:"cycles"`
	Unresolved []graph.Unresolved  `json:"unresolved"`
	Invalid    []InvalidDefinition `json:"invalid"`
}

// InvalidDefinition is a snapshot definition that could not be read. It
// stays in the sequence so the definitions run reports it.
type InvalidDefinition struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Order the snapshot's definitions and write sequence.json",
		Long: `Build the dependency graph of the snapshot's definitions and write the
creation order to sequence.json.

A definition depends on every definition its metaobject reference fields
point to. Definitions on a reference cycle are listed last as deferred; the
fields that close the cycle are added after every definition exists.

The source store is queried to translate definition IDs to types.

Example:
  metamigrate plan
  metamigrate plan --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, cmd)
		},
	}
	return cmd
}

func runPlan(opts *RootOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd, needs{source: true})
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
	if err := s.out.Emit(plan, func(w io.Writer) { writePlan(w, plan) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

// buildPlan reads the snapshot, orders its definitions and writes
// sequence.json.
func buildPlan(ctx context.Context, s *session) (*Plan, error) {
	defs, bad, err := s.snap.Definitions()
	if err != nil {
		return nil, fail(s.out, CodeSnapshot, "failed to read snapshot", err)
	}

	g, unresolved, err := graph.NewBuilder(s.resolver(), s.logger.Named("graph")).Build(ctx, defs)
	if err != nil {
		return nil, fail(s.out, CodeRemote, "failed to build dependency graph", err)
	}
	if unresolved == nil {
		unresolved = []graph.Unresolved{}
	}
	invalid := make([]InvalidDefinition, 0, len(bad))
	for _, fe := range bad {
		g.AddNode(fe.Type)
		invalid = append(invalid, InvalidDefinition{Type: fe.Type, Error: fe.Error()})
	}

	order := g.Sort()
	plan := &Plan{
		Sequence:   order.Sequence(),
		Order:      order,
		Cycles:     g.Cycles(),
		Unresolved: unresolved,
		Invalid:    invalid,
	}
	for _, c := range plan.Cycles {
		s.logger.Warn("reference cycle", zap.String("path", c.String()))
	}

	if err := s.snap.WriteSequence(plan.Sequence); err != nil {
		return nil, fail(s.out, CodeSnapshot, "failed to write sequence", err)
	}
	s.logger.Info("sequence written",
		zap.Int("sorted", len(order.Sorted)), zap.Int("deferred", len(order.Deferred)))
	return plan, nil
}

func writePlan(w io.Writer, p *Plan) {
	fmt.Fprintf(w, "✓ Planned %d definition(s): %d sorted, %d deferred\n",
		len(p.Sequence), len(p.Order.Sorted), len(p.Order.Deferred))

	if len(p.Sequence) > 0 {
		fmt.Fprintf(w, "\nSequence:\n")
		for i, typ := range p.Sequence {
			if p.Order.IsDeferred(typ) {
				fmt.Fprintf(w, "  %d. %s (deferred)\n", i+1, typ)
			} else {
				fmt.Fprintf(w, "  %d. %s\n", i+1, typ)
			}
		}
	}

	if len(p.Order.Dropped) > 0 {
		fmt.Fprintf(w, "\nDropped edges:\n")
		for _, e := range p.Order.Dropped {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if len(p.Cycles) > 0 {
		fmt.Fprintf(w, "\nCycles:\n")
		for _, c := range p.Cycles {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}

	if len(p.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved references:\n")
		for _, u := range p.Unresolved {
			fmt.Fprintf(w, "  %s.%s: %s\n", u.Owner, u.Field, u.SourceID)
		}
	}

	if len(p.Invalid) > 0 {
		fmt.Fprintf(w, "\nInvalid definitions:\n")
		for _, d := range p.Invalid {
			fmt.Fprintf(w, "  %s: %s\n", d.Type, d.Error)
		}
	}
}
