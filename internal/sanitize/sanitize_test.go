package sanitize

import (
	"fmt"
	"testing"

	"github.com/emrgen/canvas/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMetadataAllowlistClosure(t *testing.T) {
	// 20 fields, most of them sensitive; the projection must keep at most
	// the allowlisted ones, all literally present in the input.
	metadata := map[string]any{
		"status":         "finish",
		"contentPreview": "hello",
		"shareId":        "doc-abc",
		"sizeKB":         float64(12),
	}
	for i := 0; i < 16; i++ {
		metadata[fmt.Sprintf("internalField%d", i)] = "secret"
	}

	out := Metadata(model.NodeTypeDocument, metadata)
	assert.Len(t, out, 4)
	for k, v := range out {
		assert.Equal(t, metadata[k], v)
	}
	assert.NotContains(t, out, "internalField0")
}

func TestMetadataUnknownTypeDropsEverything(t *testing.T) {
	out := Metadata("someFutureNodeType", map[string]any{"anything": 1, "status": "x"})
	assert.Empty(t, out)
}

func TestMetadataSensitiveFieldsDropped(t *testing.T) {
	metadata := map[string]any{
		"status":          "finish",
		"modelName":       "small-model",
		"rawPrompt":       "system prompt text",
		"selectedToolsets": []any{map[string]any{"id": "ts-1", "config": map[string]any{"apiKey": "k"}}},
		"executionLog":    "stack trace",
		"traceId":         "corr-123",
	}

	out := Metadata(model.NodeTypeSkillResponse, metadata)
	assert.Equal(t, map[string]any{"status": "finish", "modelName": "small-model"}, out)
}

func TestMetadataNil(t *testing.T) {
	out := Metadata(model.NodeTypeDocument, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFile(t *testing.T) {
	f := model.FileRef{
		Name:       "diagram.png",
		Type:       "image/png",
		Size:       2048,
		Category:   "image",
		ResultID:   "sre-abc",
		StorageKey: "private/u1/diagram.png",
		CanvasID:   "can-xyz",
		Source:     "upload",
		Scope:      "private",
		Version:    3,
		CreatedAt:  "2026-01-01T00:00:00Z",
	}

	got := File(f)
	assert.Equal(t, model.FileRef{
		Name:     "diagram.png",
		Type:     "image/png",
		Size:     2048,
		Category: "image",
		ResultID: "sre-abc",
	}, got)
}
