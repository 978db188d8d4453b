package ids

import (
	"testing"

	"github.com/emrgen/canvas/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAlloc(t *testing.T) {
	seen := make(map[string]bool)
	for _, et := range model.EntityTypes {
		for i := 0; i < 100; i++ {
			id := Alloc(et)
			assert.False(t, seen[id], "duplicate identifier %s", id)
			seen[id] = true

			got, ok := TypeFromID(id)
			assert.True(t, ok)
			assert.Equal(t, et, got)
			assert.Len(t, id, 36)
		}
	}
}

func TestTypeFromID(t *testing.T) {
	tests := []struct {
		id   string
		want model.EntityType
		ok   bool
	}{
		{"doc-0123456789abcdef0123456789abcdef", model.EntityTypeDocument, true},
		{"can-0123456789abcdef0123456789abcdef", model.EntityTypeCanvas, true},
		{"xyz-0123456789abcdef0123456789abcdef", "", false},
		{"no-prefix-at-all", "", false},
		{"plainstring", "", false},
	}

	for _, tt := range tests {
		got, ok := TypeFromID(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.want, got, tt.id)
	}
}
