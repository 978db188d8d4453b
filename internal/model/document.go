package model

import "gorm.io/gorm"

// Document is a text document node backed by a library entity.
// ContextItems is a serialized JSON list of {entityId, type, ...} entries
// referencing sibling entities; references inside it are rewritten during
// duplication rather than stored as foreign keys.
type Document struct {
	gorm.Model
	ID           string `gorm:"primaryKey;not null"`
	UID          string `gorm:"index;not null"`
	ProjectID    string `gorm:"index"`
	CanvasID     string `gorm:"index"`
	Title        string
	Content      string
	ContextItems string
	Compression  string
}
