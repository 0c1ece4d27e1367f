package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

// TypeResolver maps a source-store definition ID to its type.
// *resolve.Resolver implements it.
type TypeResolver interface {
	SourceType(ctx context.Context, definitionID string) (string, bool)
}

// Unresolved is a metaobject_definition_id validation whose source ID did not
// resolve to a type. It contributes no edge.
type Unresolved struct {
	Owner    string `json:"owner"`
	Field    string `json:"field"`
	SourceID string `json:"source_id"`
}

// Builder derives a Graph from source definitions.
type Builder struct {
	resolver TypeResolver
	logger   *zap.Logger
}

// NewBuilder creates a builder. A nil logger discards output.
func NewBuilder(resolver TypeResolver, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{resolver: resolver, logger: logger}
}

// Build adds a node for every definition and an edge for every resolvable
// metaobject_definition_id validation. Every definition is scanned before
// Build returns; only context cancellation stops it early.
func (b *Builder) Build(ctx context.Context, defs []ir.Definition) (*Graph, []Unresolved, error) {
	g := New()
	var unresolved []Unresolved

	for _, def := range defs {
		g.AddNode(def.Type)
	}

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("build graph: %w", err)
		}
		for _, fd := range def.FieldDefinitions {
			for _, v := range fd.Validations {
				if v.Name != ir.ValidationDefinitionID {
					continue
				}
				id, err := v.ValueString()
				if err != nil || id == "" {
					b.logger.Warn("unreadable definition reference",
						zap.String("type", def.Type), zap.String("field", fd.Key), zap.Error(err))
					unresolved = append(unresolved, Unresolved{Owner: def.Type, Field: fd.Key})
					continue
				}
				target, ok := b.resolver.SourceType(ctx, id)
				if !ok {
					b.logger.Warn("definition reference not resolved",
						zap.String("type", def.Type), zap.String("field", fd.Key), zap.String("id", id))
					unresolved = append(unresolved, Unresolved{Owner: def.Type, Field: fd.Key, SourceID: id})
					continue
				}
				b.logger.Debug("dependency",
					zap.String("type", def.Type), zap.String("field", fd.Key), zap.String("depends_on", target))
				g.AddEdge(def.Type, target)
			}
		}
	}
	return g, unresolved, nil
}
