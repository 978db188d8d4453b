package store

import (
	"errors"

	"gorm.io/gorm"
)

// IsNotFound reports whether err means the requested row does not exist
// (or is soft-deleted).
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
