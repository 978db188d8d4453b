package service

import (
	"encoding/json"

	"github.com/emrgen/canvas/internal/toolset"
)

// Share blob payloads: one JSON object per share, stored at
// share/<shareID>.json. Payloads are immutable once written; duplication
// reads them back and rewrites embedded references before materializing
// new private rows.

// ContextItem is one entry of a document's context list. EntityID carries
// a plain entity reference rewritten during duplication.
type ContextItem struct {
	EntityID string         `json:"entityId"`
	Type     string         `json:"type,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type documentPayload struct {
	DocumentID   string        `json:"documentId"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	ContextItems []ContextItem `json:"contextItems,omitempty"`
	Vector       []byte        `json:"vector,omitempty"`
}

type resourcePayload struct {
	ResourceID   string `json:"resourceId"`
	Title        string `json:"title"`
	ResourceType string `json:"resourceType,omitempty"`
	Content      string `json:"content"`
	Vector       []byte `json:"vector,omitempty"`
}

type codeArtifactPayload struct {
	ArtifactID   string `json:"artifactId"`
	Title        string `json:"title"`
	ArtifactType string `json:"type,omitempty"`
	Language     string `json:"language,omitempty"`
	Content      string `json:"content"`
}

type skillStepPayload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type skillResponsePayload struct {
	ResultID       string             `json:"resultId"`
	Title          string             `json:"title"`
	SkillName      string             `json:"skillName,omitempty"`
	Query          string             `json:"query,omitempty"`
	Context        string             `json:"context,omitempty"`
	History        string             `json:"history,omitempty"`
	StructuredData string             `json:"structuredData,omitempty"`
	Steps          []skillStepPayload `json:"steps,omitempty"`
	Toolsets       []*toolset.Toolset `json:"toolsets,omitempty"`
	Version        int                `json:"version"`
	Vector         []byte             `json:"vector,omitempty"`
}

type pagePayload struct {
	PageID  string         `json:"pageId"`
	Title   string         `json:"title"`
	NodeIDs []string       `json:"nodeIds,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

type workflowAppPayload struct {
	AppID     string          `json:"appId"`
	Title     string          `json:"title"`
	Query     string          `json:"query,omitempty"`
	Variables json.RawMessage `json:"variables,omitempty"`
}
