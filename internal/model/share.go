package model

import "gorm.io/gorm"

// Share tracks one published entity: its public identifier and where the
// public blob lives. Among non-deleted rows (uid, entity_id, entity_type)
// is unique; re-publishing updates the row in place. The composite index
// includes deleted_at so a soft-deleted share never blocks re-publishing.
type Share struct {
	gorm.Model
	ID               string         `gorm:"primaryKey;not null"`
	UID              string         `gorm:"index;not null;uniqueIndex:udx_shares_entity"`
	EntityID         string         `gorm:"index;not null;uniqueIndex:udx_shares_entity"`
	EntityType       string         `gorm:"index;not null;uniqueIndex:udx_shares_entity"`
	DeletedAt        gorm.DeletedAt `gorm:"index;uniqueIndex:udx_shares_entity"`
	Title            string
	StorageKey       string
	ParentShareID    string `gorm:"index"`
	TemplateID       string
	AllowDuplication bool   `gorm:"default:false"`
	ExtraData        string // serialized JSON, opaque to the engine
}
