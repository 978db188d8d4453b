// Package toolset defines the external-capability binding contract. A
// toolset carries credentials/config for an agent tool; during duplication
// it must be re-imported for the new owner and remapped, never copied.
package toolset

import "context"

// Toolset is a named capability binding as it appears inside node
// metadata. Only ID is interpreted by the engine; everything else is
// carried through opaquely.
type Toolset struct {
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Key    string         `json:"key,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// RemapTable maps a source toolset ID to the toolset imported for the
// duplicating user. A missing entry means the toolset was not importable
// (for example, it needs credentials the new owner does not have); the
// original reference is then left unchanged.
type RemapTable map[string]*Toolset

// Importer imports toolsets for a user and returns the remap table.
type Importer interface {
	ImportToolsets(ctx context.Context, uid string, items []*Toolset) (RemapTable, error)
}

// NoopImporter imports nothing, leaving every toolset reference
// unresolved. Used in constrained deployments and tests.
type NoopImporter struct{}

func NewNoopImporter() NoopImporter { return NoopImporter{} }

func (NoopImporter) ImportToolsets(ctx context.Context, uid string, items []*Toolset) (RemapTable, error) {
	return RemapTable{}, nil
}
