package model

import "gorm.io/gorm"

// CodeArtifact is a generated code snippet attached to a canvas.
type CodeArtifact struct {
	gorm.Model
	ID           string `gorm:"primaryKey;not null"`
	UID          string `gorm:"index;not null"`
	CanvasID     string `gorm:"index"`
	Title        string
	ArtifactType string // text/html, text/markdown, application/react, ...
	Language     string
	Content      string
	Compression  string
}
