package model

import (
	"time"

	"gorm.io/gorm"
)

// Content is the live, mutable content record. The versioning subsystem reads
// it to build snapshots and writes it only during a version restore.
type Content struct {
	gorm.Model
	ID          string `gorm:"primaryKey;uuid;not null"`
	Title       string `gorm:"not null"`
	Body        *string
	ContentType string `gorm:"not null"` // lesson, video, quiz, etc.
	ResourceURL *string
	HierarchyID *string `gorm:"uuid"`
	AuthorID    string  `gorm:"uuid;not null"`
	IsArchived  bool    `gorm:"not null;default:false;index"`
	ArchivedAt  *time.Time

	Metadata *Metadata     `gorm:"foreignKey:ContentID"`
	Tags     []*ContentTag `gorm:"foreignKey:ContentID"`
}

func (Content) TableName() string {
	return "contents"
}

// TagNames returns the names of the loaded tag associations.
func (c *Content) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for _, ct := range c.Tags {
		if ct.Tag != nil {
			names = append(names, ct.Tag.Name)
		}
	}
	return names
}
