package model

// EntityType identifies the kind of entity behind a share or a canvas node.
type EntityType string

const (
	EntityTypeCanvas        EntityType = "canvas"
	EntityTypeDocument      EntityType = "document"
	EntityTypeResource      EntityType = "resource"
	EntityTypeCodeArtifact  EntityType = "codeArtifact"
	EntityTypeSkillResponse EntityType = "skillResponse"
	EntityTypePage          EntityType = "page"
	EntityTypeWorkflowApp   EntityType = "workflowApp"
)

// EntityTypes is the closed set of shareable entity types.
var EntityTypes = []EntityType{
	EntityTypeCanvas,
	EntityTypeDocument,
	EntityTypeResource,
	EntityTypeCodeArtifact,
	EntityTypeSkillResponse,
	EntityTypePage,
	EntityTypeWorkflowApp,
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsLibrary reports whether entities of this type count against the
// storage quota. Documents, resources and code artifacts are library
// entities; everything else lives only inside a canvas.
func (t EntityType) IsLibrary() bool {
	switch t {
	case EntityTypeDocument, EntityTypeResource, EntityTypeCodeArtifact:
		return true
	}
	return false
}
