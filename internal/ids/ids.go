// Package ids allocates collision-resistant, type-prefixed entity and
// share identifiers. The prefix makes the entity type recoverable from an
// opaque identifier without a lookup, and keeps identifiers long enough to
// be safe targets for substring rewriting.
package ids

import (
	"strings"

	"github.com/emrgen/canvas/internal/model"
	"github.com/google/uuid"
)

var prefixes = map[model.EntityType]string{
	model.EntityTypeCanvas:        "can",
	model.EntityTypeDocument:      "doc",
	model.EntityTypeResource:      "res",
	model.EntityTypeCodeArtifact:  "cod",
	model.EntityTypeSkillResponse: "sre",
	model.EntityTypePage:          "pag",
	model.EntityTypeWorkflowApp:   "wap",
}

var types = func() map[string]model.EntityType {
	m := make(map[string]model.EntityType, len(prefixes))
	for t, p := range prefixes {
		m[p] = t
	}
	return m
}()

// Alloc returns a new globally unique identifier for the given entity
// type: the type's three-letter prefix followed by 32 hex characters.
func Alloc(t model.EntityType) string {
	return prefixes[t] + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// TypeFromID recovers the entity type encoded in an identifier's prefix.
func TypeFromID(id string) (model.EntityType, bool) {
	prefix, _, found := strings.Cut(id, "-")
	if !found {
		return "", false
	}
	t, ok := types[prefix]
	return t, ok
}
