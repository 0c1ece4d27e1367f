// Package migrate moves metaobject definitions and instances from a source
// snapshot into a destination store, and exports a source store into a
// snapshot.
//
// Migrators are best-effort: a failing record is recorded in the Report and
// the run continues. Only context cancellation or an unusable journal stops
// a run early. Deciding what the failures mean (exit code, output) is left to
// the caller.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/metamigrate/internal/format"
	"github.com/roach88/metamigrate/internal/shopify"
	"github.com/roach88/metamigrate/internal/snapshot"
)

// FailureKind classifies a per-record failure.
type FailureKind string

const (
	// FailureTransport is a network failure, a non-2xx response, an
	// undecodable body or top-level GraphQL errors.
	FailureTransport FailureKind = "transport"
	// FailureRemote is a mutation rejected through userErrors.
	FailureRemote FailureKind = "remote"
	// FailureDuplicate is a create rejected because the type already exists.
	FailureDuplicate FailureKind = "duplicate"
	// FailureResolution is a reference that could not be resolved.
	FailureResolution FailureKind = "resolution"
	// FailureLocalIO is a snapshot file that is missing or cannot be decoded.
	FailureLocalIO FailureKind = "local_io"
)

// Failure is one record that could not be migrated.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Subject   string      `json:"subject"`
	Operation string      `json:"operation"`
	Message   string      `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s (%s): %s", f.Operation, f.Subject, f.Kind, f.Message)
}

// classify maps an error returned by a store or snapshot call to a kind.
func classify(err error) FailureKind {
	var ue *shopify.UserErrors
	var se *snapshot.SchemaError
	var fe *snapshot.FileError
	switch {
	case shopify.IsTaken(err):
		return FailureDuplicate
	case errors.As(err, &ue):
		return FailureRemote
	case errors.Is(err, fs.ErrNotExist), errors.As(err, &se), errors.As(err, &fe):
		return FailureLocalIO
	default:
		return FailureTransport
	}
}

// Definition states.
const (
	StatePending          = "PENDING"
	StateCreated          = "CREATED"
	StateFieldsReconciled = "FIELDS_RECONCILED"
	StateFailed           = "FAILED"
	StateSkipped          = "SKIPPED"
)

// DefinitionOutcome is the final state of one definition in a run.
type DefinitionOutcome struct {
	Type          string `json:"type"`
	State         string `json:"state"`
	DestinationID string `json:"destination_id,omitempty"`
}

// DeferredOutcome is a deferred field and whether Phase 2 added it.
type DeferredOutcome struct {
	Owner      string `json:"owner"`
	Field      string `json:"field"`
	Reconciled bool   `json:"reconciled"`
}

// InstanceStats counts instance outcomes per run.
type InstanceStats struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ExportedType is one type written by the exporter.
type ExportedType struct {
	Type        string `json:"type"`
	Metaobjects int    `json:"metaobjects"`
}

// Report is the structured outcome of a run.
type Report struct {
	RunID       string                 `json:"run_id"`
	Kind        string                 `json:"kind"`
	Definitions []DefinitionOutcome    `json:"definitions,omitempty"`
	Deferred    []DeferredOutcome      `json:"deferred,omitempty"`
	Excluded    []format.ExcludedField `json:"excluded,omitempty"`
	Instances   *InstanceStats         `json:"instances,omitempty"`
	Exported    []ExportedType         `json:"exported,omitempty"`
	Failures    []Failure              `json:"failures"`
}

// Failed reports whether any record failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// FailuresOf returns the failures of the given kind.
func (r *Report) FailuresOf(kind FailureKind) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Outcome returns the outcome of typ, if the run touched it.
func (r *Report) Outcome(typ string) (DefinitionOutcome, bool) {
	for _, o := range r.Definitions {
		if o.Type == typ {
			return o, true
		}
	}
	return DefinitionOutcome{}, false
}

func (r *Report) setOutcome(typ, state, destinationID string) {
	for i := range r.Definitions {
		if r.Definitions[i].Type == typ {
			r.Definitions[i].State = state
			if destinationID != "" {
				r.Definitions[i].DestinationID = destinationID
			}
			return
		}
	}
	r.Definitions = append(r.Definitions, DefinitionOutcome{Type: typ, State: state, DestinationID: destinationID})
}
