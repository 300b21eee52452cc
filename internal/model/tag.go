package model

import (
	"time"

	"gorm.io/gorm"
)

// Tag is a globally unique label. Tags are created lazily by name the first
// time something references them.
type Tag struct {
	gorm.Model
	ID   string `gorm:"primaryKey;uuid;not null"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Tag) TableName() string {
	return "tags"
}

// ContentTag associates a tag with a content item.
type ContentTag struct {
	ContentID string `gorm:"primaryKey;uuid;not null"`
	TagID     string `gorm:"primaryKey;uuid;not null"`
	CreatedAt time.Time

	Tag *Tag `gorm:"foreignKey:TagID"`
}

func (ContentTag) TableName() string {
	return "content_tags"
}
