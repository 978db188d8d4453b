package model

import "gorm.io/gorm"

// Page is a composite "page" entity. State holds the raw CRDT draft
// update bytes; only the decoded {title, nodeIds, config} triple matters
// to the publish/duplicate engine.
type Page struct {
	gorm.Model
	ID          string `gorm:"primaryKey;not null"`
	UID         string `gorm:"index;not null"`
	ProjectID   string `gorm:"index"`
	Title       string
	State       []byte
	Compression string
}

// WorkflowApp is a published workflow entry point bound to a canvas.
type WorkflowApp struct {
	gorm.Model
	ID        string `gorm:"primaryKey;not null"`
	UID       string `gorm:"index;not null"`
	CanvasID  string `gorm:"index"`
	Title     string
	Query     string
	Variables string // serialized JSON variable definitions
}
