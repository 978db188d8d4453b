package model

import "gorm.io/gorm"

const (
	DuplicateStatusFinish = "finish"
	DuplicateStatusFailed = "failed"
)

// DuplicateRecord is a provenance ledger entry written once per
// successfully duplicated entity. Rows are additive and never mutated.
type DuplicateRecord struct {
	gorm.Model
	SourceID   string `gorm:"index;not null"`
	TargetID   string `gorm:"index;not null"`
	EntityType string `gorm:"not null"`
	UID        string `gorm:"index;not null"`
	ShareID    string `gorm:"index"`
	Status     string `gorm:"default:finish"`
}
