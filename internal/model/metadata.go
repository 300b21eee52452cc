package model

import "time"

// Metadata is the optional zero-or-one descriptive record attached to a
// content item, keyed by the owning content id. It is restored as a whole
// unit from snapshots.
type Metadata struct {
	ContentID     string `gorm:"primaryKey;uuid;not null"`
	Subject       *string
	Topic         *string
	Difficulty    *string // beginner, intermediate, advanced
	Duration      *int    // minutes
	Prerequisites *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Metadata) TableName() string {
	return "metadata"
}
