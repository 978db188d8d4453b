// Package vector defines the embedding store adapter. Publishing
// serializes an entity's embedding alongside the public blob; duplication
// restores it against the new identifier so the copy is immediately
// searchable without re-embedding.
package vector

import (
	"context"

	"github.com/emrgen/canvas/internal/model"
)

// Ref identifies one entity in the vector store.
type Ref struct {
	EntityID   string
	EntityType model.EntityType
}

type Store interface {
	// Serialize exports the embedding attached to ref, or nil if none.
	Serialize(ctx context.Context, uid string, ref Ref) ([]byte, error)
	// Deserialize restores an exported embedding against target.
	Deserialize(ctx context.Context, uid string, data []byte, target Ref) error
}

// Noop carries no embeddings.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Serialize(ctx context.Context, uid string, ref Ref) ([]byte, error) {
	return nil, nil
}

func (Noop) Deserialize(ctx context.Context, uid string, data []byte, target Ref) error {
	return nil
}
