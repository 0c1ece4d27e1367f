package cli

import (
	"fmt"
	"io"

	"github.com/roach88/metamigrate/internal/migrate"
)

// writeReport renders a migration report for humans.
func writeReport(w io.Writer, r *migrate.Report) {
	mark := "✓"
	if r.Failed() {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s run %s: %d failure(s)\n", mark, r.Kind, r.RunID, len(r.Failures))

	if len(r.Exported) > 0 {
		fmt.Fprintf(w, "\nExported %d definition(s):\n", len(r.Exported))
		for _, e := range r.Exported {
			fmt.Fprintf(w, "  %s: %d metaobject(s)\n", e.Type, e.Metaobjects)
		}
	}

	if len(r.Definitions) > 0 {
		fmt.Fprintf(w, "\nDefinitions:\n")
		for _, d := range r.Definitions {
			if d.DestinationID != "" {
				fmt.Fprintf(w, "  %s: %s (%s)\n", d.Type, d.State, d.DestinationID)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", d.Type, d.State)
			}
		}
	}

	if len(r.Deferred) > 0 {
		fmt.Fprintf(w, "\nDeferred fields:\n")
		for _, d := range r.Deferred {
			status := "not reconciled"
			if d.Reconciled {
				status = "reconciled"
			}
			fmt.Fprintf(w, "  %s.%s: %s\n", d.Owner, d.Field, status)
		}
	}

	if len(r.Excluded) > 0 {
		fmt.Fprintf(w, "\nExcluded fields:\n")
		for _, e := range r.Excluded {
			fmt.Fprintf(w, "  %s.%s: references %s\n", e.Owner, e.Field, e.SourceID)
		}
	}

	if r.Instances != nil {
		fmt.Fprintf(w, "\nMetaobjects: %d upserted, %d skipped, %d failed\n",
			r.Instances.Upserted, r.Instances.Skipped, r.Instances.Failed)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\nFailures:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  [%s] %s %s: %s\n", f.Kind, f.Operation, f.Subject, f.Message)
		}
	}
}
