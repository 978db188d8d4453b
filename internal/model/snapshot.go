package model

// Node types appearing in a canvas graph. Library and skill response
// nodes are backed by entity rows; media and memo nodes carry their
// content in metadata only.
const (
	NodeTypeDocument      = "document"
	NodeTypeResource      = "resource"
	NodeTypeCodeArtifact  = "codeArtifact"
	NodeTypeSkillResponse = "skillResponse"
	NodeTypeMemo          = "memo"
	NodeTypeImage         = "image"
	NodeTypeVideo         = "video"
	NodeTypeAudio         = "audio"
	NodeTypeGroup         = "group"
)

// GraphSnapshot is the serialized representation of a canvas: the unit
// stored at a canvas share's public storage key. Snapshots are immutable
// once written to public storage.
type GraphSnapshot struct {
	Title string    `json:"title"`
	Nodes []Node    `json:"nodes"`
	Edges []Edge    `json:"edges"`
	Files []FileRef `json:"files,omitempty"`
}

// Node is one canvas node. ID is graph-local; Data.EntityID is the domain
// identifier, stable across canvas re-saves.
type Node struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

type NodeData struct {
	EntityID       string         `json:"entityId"`
	Title          string         `json:"title"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ContentPreview string         `json:"contentPreview,omitempty"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// FileRef describes one attached file. The full private shape is stored
// on the canvas; only a sanitized projection survives publishing.
type FileRef struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Category   string `json:"category,omitempty"`
	ResultID   string `json:"resultId,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
	CanvasID   string `json:"canvasId,omitempty"`
	Source     string `json:"source,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Version    int    `json:"version,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}
