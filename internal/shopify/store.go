// Package shopify implements the Admin API operations the migration needs
// on top of the graphql transport: definition and instance reads, the
// create/update/upsert mutations, and point lookups that translate
// store-scoped IDs through portable keys.
//
// Lookups report "not found" as an empty string with a nil error. Errors are
// reserved for transport and decoding failures.
package shopify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

// Doer executes one GraphQL document. *graphql.Client implements it.
type Doer interface {
	Do(ctx context.Context, query string, variables map[string]any, out any) error
}

// DefaultPageSize is used for paginated reads when the caller passes zero.
const DefaultPageSize = 50

// Store is one store's Admin API.
type Store struct {
	client Doer
	logger *zap.Logger
}

// New wraps client. A nil logger discards output.
func New(client Doer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// ListDefinitions returns every definition summary, following cursors.
func (s *Store) ListDefinitions(ctx context.Context) ([]ir.DefinitionSummary, error) {
	var all []ir.DefinitionSummary
	var after *string
	for {
		var out struct {
			Conn struct {
				Nodes    []ir.DefinitionSummary `json:"nodes"`
				PageInfo pageInfo               `json:"pageInfo"`
			} `json:"metaobjectDefinitions"`
		}
		vars := map[string]any{"first": DefaultPageSize, "after": after}
		if err := s.client.Do(ctx, queryDefinitions, vars, &out); err != nil {
			return nil, fmt.Errorf("list definitions: %w", err)
		}
		all = append(all, out.Conn.Nodes...)
		if !out.Conn.PageInfo.HasNextPage || out.Conn.PageInfo.EndCursor == "" {
			return all, nil
		}
		cursor := out.Conn.PageInfo.EndCursor
		after = &cursor
	}
}

// DefinitionByType returns the full definition of typ, or nil if the store
// has none.
func (s *Store) DefinitionByType(ctx context.Context, typ string) (*ir.Definition, error) {
	var out struct {
		Def *ir.Definition `json:"metaobjectDefinitionByType"`
	}
	if err := s.client.Do(ctx, queryDefinitionByType, map[string]any{"type": typ}, &out); err != nil {
		return nil, fmt.Errorf("definition %s: %w", typ, err)
	}
	return out.Def, nil
}

// Metaobjects returns every instance of typ. Reading stops at the end of
// the pages or once limit instances were read; limit <= 0 reads all.
func (s *Store) Metaobjects(ctx context.Context, typ string, pageSize, limit int) ([]ir.Metaobject, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []ir.Metaobject
	var after *string
	for {
		var out struct {
			Conn struct {
				Nodes    []ir.Metaobject `json:"nodes"`
				PageInfo pageInfo        `json:"pageInfo"`
			} `json:"metaobjects"`
		}
		vars := map[string]any{"type": typ, "first": pageSize, "after": after}
		if err := s.client.Do(ctx, queryMetaobjects, vars, &out); err != nil {
			return nil, fmt.Errorf("metaobjects %s: %w", typ, err)
		}
		all = append(all, out.Conn.Nodes...)
		s.logger.Debug("metaobjects page", zap.String("type", typ), zap.Int("read", len(all)))

		if limit > 0 && len(all) >= limit {
			return all, nil
		}
		if !out.Conn.PageInfo.HasNextPage || out.Conn.PageInfo.EndCursor == "" {
			return all, nil
		}
		cursor := out.Conn.PageInfo.EndCursor
		after = &cursor
	}
}

type mutationPayload struct {
	Definition *ir.Definition `json:"metaobjectDefinition"`
	Metaobject *ir.Metaobject `json:"metaobject"`
	UserErrors []UserError    `json:"userErrors"`
}

// CreateDefinition creates a definition. Rejected input is returned as *UserErrors.
func (s *Store) CreateDefinition(ctx context.Context, input ir.DefinitionCreateInput) (*ir.Definition, error) {
	var out struct {
		Payload mutationPayload `json:"metaobjectDefinitionCreate"`
	}
	if err := s.client.Do(ctx, mutationDefinitionCreate, map[string]any{"definition": input}, &out); err != nil {
		return nil, fmt.Errorf("create definition %s: %w", input.Type, err)
	}
	if err := userErrors("create definition", input.Type, out.Payload.UserErrors); err != nil {
		return nil, err
	}
	return out.Payload.Definition, nil
}

// UpdateDefinition applies input to the definition with the given
// destination ID.
func (s *Store) UpdateDefinition(ctx context.Context, id string, input ir.DefinitionUpdateInput) (*ir.Definition, error) {
	var out struct {
		Payload mutationPayload `json:"metaobjectDefinitionUpdate"`
	}
	vars := map[string]any{"id": id, "definition": input}
	if err := s.client.Do(ctx, mutationDefinitionUpdate, vars, &out); err != nil {
		return nil, fmt.Errorf("update definition %s: %w", id, err)
	}
	if err := userErrors("update definition", id, out.Payload.UserErrors); err != nil {
		return nil, err
	}
	return out.Payload.Definition, nil
}

// UpsertMetaobject creates the instance identified by handle or replaces
// its fields.
func (s *Store) UpsertMetaobject(ctx context.Context, handle ir.MetaobjectHandle, input ir.MetaobjectUpsertInput) (*ir.Metaobject, error) {
	var out struct {
		Payload mutationPayload `json:"metaobjectUpsert"`
	}
	vars := map[string]any{"handle": handle, "metaobject": input}
	subject := handle.Type + "/" + handle.Handle
	if err := s.client.Do(ctx, mutationMetaobjectUpsert, vars, &out); err != nil {
		return nil, fmt.Errorf("upsert metaobject %s: %w", subject, err)
	}
	if err := userErrors("upsert metaobject", subject, out.Payload.UserErrors); err != nil {
		return nil, err
	}
	return out.Payload.Metaobject, nil
}

// KeyByID returns the portable key of the entity with the given ID, or ""
// if the store has no such entity.
func (s *Store) KeyByID(ctx context.Context, kind ir.RefKind, id string) (string, error) {
	vars := map[string]any{"id": id}
	switch kind {
	case ir.RefDefinition:
		var out struct {
			Def *struct {
				Type string `json:"type"`
			} `json:"metaobjectDefinition"`
		}
		if err := s.client.Do(ctx, queryDefinitionTypeByID, vars, &out); err != nil {
			return "", fmt.Errorf("definition type of %s: %w", id, err)
		}
		if out.Def == nil {
			return "", nil
		}
		return out.Def.Type, nil
	case ir.RefProduct:
		return s.handleByID(ctx, queryProductHandle, "product", id)
	case ir.RefCollection:
		return s.handleByID(ctx, queryCollectionHandle, "collection", id)
	case ir.RefMedia:
		var out struct {
			Node *struct {
				Alt string `json:"alt"`
			} `json:"node"`
		}
		if err := s.client.Do(ctx, queryFileAlt, vars, &out); err != nil {
			return "", fmt.Errorf("alt text of %s: %w", id, err)
		}
		if out.Node == nil {
			return "", nil
		}
		return out.Node.Alt, nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
}

// IDByKey returns the ID of the entity with the given portable key, or ""
// if the store has no such entity.
func (s *Store) IDByKey(ctx context.Context, kind ir.RefKind, key string) (string, error) {
	switch kind {
	case ir.RefDefinition:
		var out struct {
			Def *struct {
				ID string `json:"id"`
			} `json:"metaobjectDefinitionByType"`
		}
		if err := s.client.Do(ctx, queryDefinitionIDByType, map[string]any{"type": key}, &out); err != nil {
			return "", fmt.Errorf("definition id of %s: %w", key, err)
		}
		if out.Def == nil {
			return "", nil
		}
		return out.Def.ID, nil
	case ir.RefProduct:
		return s.idByHandle(ctx, queryProductByHandle, "productByHandle", key)
	case ir.RefCollection:
		return s.idByHandle(ctx, queryCollectionByHandle, "collectionByHandle", key)
	case ir.RefMedia:
		var out struct {
			Files struct {
				Nodes []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"files"`
		}
		vars := map[string]any{"query": altTextQuery(key)}
		if err := s.client.Do(ctx, queryFileByAlt, vars, &out); err != nil {
			return "", fmt.Errorf("file with alt %q: %w", key, err)
		}
		if len(out.Files.Nodes) == 0 {
			return "", nil
		}
		return out.Files.Nodes[0].ID, nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
}

func (s *Store) handleByID(ctx context.Context, query, root, id string) (string, error) {
	var out map[string]*struct {
		Handle string `json:"handle"`
	}
	if err := s.client.Do(ctx, query, map[string]any{"id": id}, &out); err != nil {
		return "", fmt.Errorf("%s handle of %s: %w", root, id, err)
	}
	if node := out[root]; node != nil {
		return node.Handle, nil
	}
	return "", nil
}

func (s *Store) idByHandle(ctx context.Context, query, root, handle string) (string, error) {
	var out map[string]*struct {
		ID string `json:"id"`
	}
	if err := s.client.Do(ctx, query, map[string]any{"handle": handle}, &out); err != nil {
		return "", fmt.Errorf("%s %s: %w", root, handle, err)
	}
	if node := out[root]; node != nil {
		return node.ID, nil
	}
	return "", nil
}

// altTextQuery builds the files search filter for an exact alt text.
func altTextQuery(alt string) string {
	escaped := strings.ReplaceAll(alt, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("alt_text:'%s'", escaped)
}
