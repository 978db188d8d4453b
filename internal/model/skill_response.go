package model

import "gorm.io/gorm"

// SkillResponse is the stored result of one agent/skill invocation.
// Context, History and StructuredData hold opaque serialized JSON in which
// entity identifiers appear as plain substrings; Query may embed at-mention
// tokens carrying id= attributes.
type SkillResponse struct {
	gorm.Model
	ID             string `gorm:"primaryKey;not null"`
	UID            string `gorm:"index;not null"`
	CanvasID       string `gorm:"index"`
	Title          string
	SkillName      string
	Query          string
	Context        string
	History        string
	StructuredData string
	Toolsets       string // serialized toolset bindings used by this invocation
	Version        int
	DuplicateFrom  string // source result ID when this row was duplicated
}

// SkillStep is one step of a skill response. Steps keep their own version
// counter which restarts at zero on duplication.
type SkillStep struct {
	gorm.Model
	ResultID string `gorm:"index;not null"`
	Name     string
	Content  string
	Version  int
}
