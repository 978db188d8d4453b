// Package sanitize projects node data onto its public-facing fields.
// Every metadata field is private by default: a field becomes public only
// by being named in the per-node-type allowlist below. Sanitization only
// removes fields, it never renames or transforms surviving values.
package sanitize

import "github.com/emrgen/canvas/internal/model"

// nodeAllowlists names the metadata fields that survive publishing, per
// node type. Credentials, raw prompts, tool configuration, execution logs
// and internal correlation identifiers must never appear here.
var nodeAllowlists = map[string][]string{
	model.NodeTypeDocument: {
		"status", "contentPreview", "shareId", "sizeKB",
	},
	model.NodeTypeResource: {
		"resourceType", "status", "contentPreview", "shareId", "sizeKB",
	},
	model.NodeTypeCodeArtifact: {
		"artifactType", "language", "status", "shareId", "activeTab",
	},
	model.NodeTypeSkillResponse: {
		"status", "modelName", "version", "shareId",
	},
	model.NodeTypeMemo: {
		"contentPreview", "style",
	},
	model.NodeTypeImage: {
		"imageUrl", "style", "originalWidth", "showBorder", "showTitle",
	},
	model.NodeTypeVideo: {
		"videoUrl", "showBorder", "showTitle",
	},
	model.NodeTypeAudio: {
		"audioUrl",
	},
	model.NodeTypeGroup: {
		"style",
	},
}

// Metadata keeps only the allowlisted fields for the given node type.
// Unknown node types get an empty allowlist, so everything is dropped.
func Metadata(nodeType string, metadata map[string]any) map[string]any {
	out := make(map[string]any)
	if metadata == nil {
		return out
	}
	for _, field := range nodeAllowlists[nodeType] {
		if v, ok := metadata[field]; ok {
			out[field] = v
		}
	}
	return out
}

// Node returns a copy of n with its metadata projected onto the public
// allowlist for the node's type.
func Node(n model.Node) model.Node {
	n.Data.Metadata = Metadata(n.Type, n.Data.Metadata)
	return n
}

// File keeps only presentation-relevant file fields. Storage-internal
// fields (physical key, owning canvas, provenance, scope, version
// counters, timestamps) are dropped.
func File(f model.FileRef) model.FileRef {
	return model.FileRef{
		Name:     f.Name,
		Type:     f.Type,
		Size:     f.Size,
		Category: f.Category,
		ResultID: f.ResultID,
	}
}
