package store

import (
	"context"
	"errors"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/longhang2004/content-service/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a unique
	// constraint, e.g. two writers racing on the same (content, version).
	ErrDuplicateKey = errors.New("duplicate key")
)

type Store interface {
	ContentStore
	MetadataStore
	TagStore
	VersionStore
	// Transaction runs f against a transaction-bound store. The transaction
	// rolls back when f returns an error or the context is cancelled.
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type ContentStore interface {
	// CreateContent creates a new content row.
	CreateContent(ctx context.Context, content *model.Content) error
	// GetContent retrieves a content row with its metadata and tags.
	GetContent(ctx context.Context, id uuid.UUID) (*model.Content, error)
	// GetContentForUpdate retrieves a content row holding a row-level lock
	// where the backend supports one.
	GetContentForUpdate(ctx context.Context, id uuid.UUID) (*model.Content, error)
	// ListContents retrieves content rows page by page.
	ListContents(ctx context.Context, includeArchived bool, limit, offset int) ([]*model.Content, int64, error)
	// UpdateContent saves a content row.
	UpdateContent(ctx context.Context, content *model.Content) error
	// UpdateContentFields applies a partial column update to a content row.
	UpdateContentFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// DeleteContent soft deletes a content row.
	DeleteContent(ctx context.Context, id uuid.UUID) error
}

type MetadataStore interface {
	// GetMetadata retrieves the metadata record, or nil when none exists.
	GetMetadata(ctx context.Context, contentID uuid.UUID) (*model.Metadata, error)
	// UpsertMetadata creates or overwrites the metadata record.
	UpsertMetadata(ctx context.Context, meta *model.Metadata) error
}

type TagStore interface {
	// GetContentTags retrieves the tag names attached to a content item.
	GetContentTags(ctx context.Context, contentID uuid.UUID) ([]string, error)
	// GetOrCreateTag retrieves a tag by name, creating it when absent.
	GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error)
	// GetTagByName retrieves a tag by name.
	GetTagByName(ctx context.Context, name string) (*model.Tag, error)
	// AttachTag associates a tag with a content item.
	AttachTag(ctx context.Context, contentID uuid.UUID, tagID string) error
	// DetachTag removes a tag association. Returns the number of rows removed.
	DetachTag(ctx context.Context, contentID uuid.UUID, tagID string) (int64, error)
	// ReplaceContentTags drops all tag associations of a content item and
	// recreates one per name, creating missing tags on the way.
	ReplaceContentTags(ctx context.Context, contentID uuid.UUID, names []string) error
}

type VersionStore interface {
	// CreateVersion appends one immutable version row.
	CreateVersion(ctx context.Context, version *model.ContentVersion) error
	// ListVersions retrieves version rows newest first.
	ListVersions(ctx context.Context, contentID uuid.UUID, limit, offset int) ([]*model.ContentVersion, int64, error)
	// GetVersion retrieves a version row by content id and version number.
	GetVersion(ctx context.Context, contentID uuid.UUID, version int) (*model.ContentVersion, error)
	// GetVersionByID retrieves a version row by its id.
	GetVersionByID(ctx context.Context, id uuid.UUID) (*model.ContentVersion, error)
	// MaxVersion returns the highest version number recorded for a content
	// item, or 0 when it has none. Retention-pruned rows still count.
	MaxVersion(ctx context.Context, contentID uuid.UUID) (int, error)
	// ListVersionsByCreatedTime retrieves version rows created in [from, to).
	ListVersionsByCreatedTime(ctx context.Context, from, to time.Time) ([]*model.ContentVersion, error)
	// DeleteVersions soft deletes the given version numbers per content id.
	DeleteVersions(ctx context.Context, remove map[string]mapset.Set[int]) error
}
