package model

import "gorm.io/gorm"

// Canvas is the private mutable workspace. State holds the serialized
// graph snapshot, optionally compressed per the Compression column.
type Canvas struct {
	gorm.Model
	ID          string `gorm:"primaryKey;not null"`
	UID         string `gorm:"index;not null"`
	ProjectID   string `gorm:"index"`
	Title       string
	State       string
	Compression string // gzip, brotli, lz4 or empty for plain JSON
}
