package model

import "gorm.io/gorm"

// StaticFile is a stored media or attachment object owned by an entity.
type StaticFile struct {
	gorm.Model
	UID        string `gorm:"index;not null"`
	StorageKey string `gorm:"index;not null"`
	Name       string
	FileType   string
	FileSize   int64
	Category   string
	EntityID   string `gorm:"index"`
	EntityType string
	CanvasID   string `gorm:"index"`
	Source     string
	Scope      string
	Version    int
}

// StorageQuota tracks per-user library entity quota. A negative
// FileCountQuota means unlimited.
type StorageQuota struct {
	gorm.Model
	UID            string `gorm:"uniqueIndex;not null"`
	FileCountQuota int64  `gorm:"default:-1"`
	FileCountUsed  int64  `gorm:"default:0"`
}
