// Package search defines the full-text index contract consumed by the
// publish/duplicate engine. Only the call contract matters here; the
// engine never reads search results.
package search

import (
	"context"
	"time"
)

// Document is the data indexed for one entity.
type Document struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	UID       string    `json:"uid"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Indexer pushes entities into the search index.
type Indexer interface {
	UpsertDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// Noop discards all indexing calls.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) UpsertDocument(ctx context.Context, doc Document) error { return nil }
func (Noop) DeleteDocument(ctx context.Context, id string) error    { return nil }
