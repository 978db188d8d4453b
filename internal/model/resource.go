package model

import "gorm.io/gorm"

// Resource is an ingested external resource (web page, file, ...).
type Resource struct {
	gorm.Model
	ID           string `gorm:"primaryKey;not null"`
	UID          string `gorm:"index;not null"`
	ProjectID    string `gorm:"index"`
	CanvasID     string `gorm:"index"`
	Title        string
	ResourceType string // weblink, file, text
	Content      string
	StorageKey   string // raw payload location for file resources
	Compression  string
}
