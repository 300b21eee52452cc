package service

import (
	"sort"
	"time"

	"github.com/longhang2004/content-service/internal/model"
)

// ContentView is the content projection returned to callers: the live row
// flattened together with its metadata and tag names.
type ContentView struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Body        *string                 `json:"body"`
	ContentType string                  `json:"contentType"`
	ResourceURL *string                 `json:"resourceUrl"`
	HierarchyID *string                 `json:"hierarchyId"`
	AuthorID    string                  `json:"authorId"`
	IsArchived  bool                    `json:"isArchived"`
	ArchivedAt  *time.Time              `json:"archivedAt"`
	Metadata    *model.MetadataSnapshot `json:"metadata"`
	Tags        []string                `json:"tags"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

func newContentView(content *model.Content) *ContentView {
	view := &ContentView{
		ID:          content.ID,
		Title:       content.Title,
		Body:        content.Body,
		ContentType: content.ContentType,
		ResourceURL: content.ResourceURL,
		HierarchyID: content.HierarchyID,
		AuthorID:    content.AuthorID,
		IsArchived:  content.IsArchived,
		ArchivedAt:  content.ArchivedAt,
		Tags:        content.TagNames(),
		CreatedAt:   content.CreatedAt,
		UpdatedAt:   content.UpdatedAt,
	}
	sort.Strings(view.Tags)

	if content.Metadata != nil {
		view.Metadata = &model.MetadataSnapshot{
			Subject:       content.Metadata.Subject,
			Topic:         content.Metadata.Topic,
			Difficulty:    content.Metadata.Difficulty,
			Duration:      content.Metadata.Duration,
			Prerequisites: content.Metadata.Prerequisites,
		}
	}

	return view
}

// VersionInfo is one version log entry with its snapshot decoded.
type VersionInfo struct {
	ID         string          `json:"id"`
	ContentID  string          `json:"contentId"`
	Version    int             `json:"version"`
	Snapshot   *model.Snapshot `json:"snapshot"`
	ChangeNote *string         `json:"changeNote"`
	CreatedBy  *string         `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
}
