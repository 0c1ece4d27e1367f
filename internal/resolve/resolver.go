// Package resolve translates store-scoped entity IDs between a source and a
// destination store through portable keys: definition type, product and
// collection handle, media alt text.
//
// Resolution never fails loudly. A lookup that finds nothing and a lookup
// that errors both report absence, so callers apply one policy (exclude,
// defer, drop) to every miss. Absence means "cannot resolve now", not a
// permanent error.
package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

// Directory looks entities up in one store. *shopify.Store implements it.
// Not-found is reported as "" with a nil error.
type Directory interface {
	KeyByID(ctx context.Context, kind ir.RefKind, id string) (string, error)
	IDByKey(ctx context.Context, kind ir.RefKind, key string) (string, error)
}

// Status is the outcome of a cross-store resolution.
type Status int

const (
	// Resolved means both the source key and the destination ID were found.
	Resolved Status = iota
	// MissingKey means the source store has no key for the ID.
	MissingKey
	// MissingDestination means the key exists but the destination has no
	// entity with it yet.
	MissingDestination
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case MissingKey:
		return "missing_key"
	case MissingDestination:
		return "missing_destination"
	default:
		return "unknown"
	}
}

// Resolution is the result of translating one source ID.
type Resolution struct {
	Kind     ir.RefKind
	SourceID string
	Key      string
	ID       string
	Status   Status
}

// OK reports whether the destination ID is known.
func (r Resolution) OK() bool {
	return r.Status == Resolved
}

type cacheKey struct {
	kind ir.RefKind
	id   string
}

// Resolver translates IDs from source to destination.
//
// Positive source-side lookups are memoized: the source is read-only for the
// duration of a run. Destination lookups always go to the store because
// definitions appear there while the run progresses.
type Resolver struct {
	source      Directory
	destination Directory
	logger      *zap.Logger
	sourceKeys  map[cacheKey]string
}

// New creates a resolver. destination may be nil for source-only use (the
// plan command); destination lookups then always miss.
func New(source, destination Directory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:      source,
		destination: destination,
		logger:      logger,
		sourceKeys:  make(map[cacheKey]string),
	}
}

// SourceKey returns the portable key of a source-store ID.
func (r *Resolver) SourceKey(ctx context.Context, kind ir.RefKind, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	ck := cacheKey{kind: kind, id: id}
	if key, ok := r.sourceKeys[ck]; ok {
		return key, true
	}

	key, err := r.source.KeyByID(ctx, kind, id)
	if err != nil {
		r.logger.Warn("source lookup failed",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return "", false
	}
	if key == "" {
		r.logger.Debug("source key not found", zap.String("kind", string(kind)), zap.String("id", id))
		return "", false
	}
	r.sourceKeys[ck] = key
	return key, true
}

// DestinationID returns the destination-store ID of the entity with key.
func (r *Resolver) DestinationID(ctx context.Context, kind ir.RefKind, key string) (string, bool) {
	if key == "" || r.destination == nil {
		return "", false
	}
	id, err := r.destination.IDByKey(ctx, kind, key)
	if err != nil {
		r.logger.Warn("destination lookup failed",
			zap.String("kind", string(kind)), zap.String(kind.KeyName(), key), zap.Error(err))
		return "", false
	}
	if id == "" {
		r.logger.Debug("destination id not found", zap.String("kind", string(kind)), zap.String(kind.KeyName(), key))
		return "", false
	}
	return id, true
}

// Resolve translates a source ID to the destination ID of the same entity.
func (r *Resolver) Resolve(ctx context.Context, kind ir.RefKind, sourceID string) Resolution {
	res := Resolution{Kind: kind, SourceID: sourceID}

	key, ok := r.SourceKey(ctx, kind, sourceID)
	if !ok {
		res.Status = MissingKey
		return res
	}
	res.Key = key

	id, ok := r.DestinationID(ctx, kind, key)
	if !ok {
		res.Status = MissingDestination
		return res
	}
	res.ID = id
	res.Status = Resolved
	return res
}

// SourceType returns the type of a source-store definition ID.
func (r *Resolver) SourceType(ctx context.Context, definitionID string) (string, bool) {
	return r.SourceKey(ctx, ir.RefDefinition, definitionID)
}

// DestinationDefinitionID returns the destination ID of the definition
// with the given type.
func (r *Resolver) DestinationDefinitionID(ctx context.Context, typ string) (string, bool) {
	return r.DestinationID(ctx, ir.RefDefinition, typ)
}
