package model

import (
	"time"

	"gorm.io/gorm"
)

// ContentVersion is one entry of the append-only version log. Rows are
// immutable after creation; the (content_id, version) pair is unique so two
// concurrent writers can never both claim the same version number.
// The Snapshot column holds the encoded model.Snapshot blob.
type ContentVersion struct {
	ID         string `gorm:"primaryKey;uuid;not null"`
	ContentID  string `gorm:"uniqueIndex:idx_content_versions_content_version;uuid;not null"`
	Version    int    `gorm:"uniqueIndex:idx_content_versions_content_version;not null"`
	Snapshot   []byte `gorm:"not null"`
	ChangeNote *string
	CreatedBy  *string        `gorm:"uuid"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"` // set only by the retention job
}

func (ContentVersion) TableName() string {
	return "content_versions"
}
