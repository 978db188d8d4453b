package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Share{},
		&DuplicateRecord{},
		&Canvas{},
		&Document{},
		&Resource{},
		&CodeArtifact{},
		&SkillResponse{},
		&SkillStep{},
		&Page{},
		&WorkflowApp{},
		&StaticFile{},
		&StorageQuota{},
	)
}
