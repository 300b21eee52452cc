package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/longhang2004/content-service/internal/cache"
	"github.com/longhang2004/content-service/internal/model"
	"github.com/longhang2004/content-service/internal/store"
)

// NewContentService creates a new ContentService. The cache is optional, a
// nil cache disables content projection caching.
func NewContentService(store store.Store, versioning *VersioningService, cache *cache.Redis) *ContentService {
	return &ContentService{
		store:      store,
		versioning: versioning,
		cache:      cache,
	}
}

// ContentService owns the mutable content entity. Every mutating operation
// runs the content write and the matching version append inside a single
// transaction, so the version history can never drift from the live state.
type ContentService struct {
	store      store.Store
	versioning *VersioningService
	cache      *cache.Redis
}

type CreateContentInput struct {
	Title       string
	Body        *string
	ContentType string
	ResourceURL *string
	HierarchyID *string
	Metadata    *model.MetadataSnapshot
	Tags        []string
}

// UpdateContentInput applies a partial update: nil fields stay unchanged.
// A non-nil Tags slice replaces the tag set, an empty one clears it.
type UpdateContentInput struct {
	Title       *string
	Body        *string
	ContentType *string
	ResourceURL *string
	HierarchyID *string
	Metadata    *model.MetadataSnapshot
	Tags        []string
}

// withVersionRetry runs f as a transaction, retrying when two writers raced
// on the same version number.
func (c *ContentService) withVersionRetry(ctx context.Context, f func(tx store.Store) error) error {
	var err error
	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		err = c.store.Transaction(ctx, f)
		if !errors.Is(err, store.ErrDuplicateKey) {
			return err
		}
		logrus.Warnf("version allocation conflict, retrying (attempt %d)", attempt+1)
	}
	return ErrVersionConflict
}

// Create creates a content item together with version 1.
func (c *ContentService) Create(ctx context.Context, input *CreateContentInput, authorID string) (*ContentView, error) {
	if input.Title == "" || input.ContentType == "" {
		return nil, ErrInvalidContent
	}

	id := uuid.New()
	err := c.withVersionRetry(ctx, func(tx store.Store) error {
		content := &model.Content{
			ID:          id.String(),
			Title:       input.Title,
			Body:        input.Body,
			ContentType: input.ContentType,
			ResourceURL: input.ResourceURL,
			HierarchyID: input.HierarchyID,
			AuthorID:    authorID,
		}
		if err := tx.CreateContent(ctx, content); err != nil {
			return err
		}

		if input.Metadata != nil {
			if err := tx.UpsertMetadata(ctx, metadataRecord(id, input.Metadata)); err != nil {
				return err
			}
		}

		for _, name := range normalizeTagNames(input.Tags) {
			tag, err := tx.GetOrCreateTag(ctx, name)
			if err != nil {
				return err
			}
			if err := tx.AttachTag(ctx, id, tag.ID); err != nil {
				return err
			}
		}

		return c.versioning.OnCreate(ctx, tx, id, authorID)
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("content created with id %s", id)
	return c.Get(ctx, id)
}

// Update applies a partial update and records version N+1.
func (c *ContentService) Update(ctx context.Context, id uuid.UUID, input *UpdateContentInput, updatedBy string) (*ContentView, error) {
	err := c.withVersionRetry(ctx, func(tx store.Store) error {
		content, err := tx.GetContentForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}

		changeNote := "Content updated"
		if input.Title != nil && *input.Title != content.Title {
			changeNote = fmt.Sprintf("Title changed: %q → %q", content.Title, *input.Title)
		}

		if input.Title != nil {
			content.Title = *input.Title
		}
		if input.Body != nil {
			content.Body = input.Body
		}
		if input.ContentType != nil {
			content.ContentType = *input.ContentType
		}
		if input.ResourceURL != nil {
			content.ResourceURL = input.ResourceURL
		}
		if input.HierarchyID != nil {
			content.HierarchyID = input.HierarchyID
		}

		if err := tx.UpdateContent(ctx, content); err != nil {
			return err
		}

		if input.Metadata != nil {
			if err := tx.UpsertMetadata(ctx, metadataRecord(id, input.Metadata)); err != nil {
				return err
			}
		}

		if input.Tags != nil {
			if err := tx.ReplaceContentTags(ctx, id, normalizeTagNames(input.Tags)); err != nil {
				return err
			}
		}

		return c.versioning.OnUpdate(ctx, tx, id, &updatedBy, changeNote)
	})
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, id)
	return c.Get(ctx, id)
}

// Archive flags a content item as archived and records an "Archived" version.
// Snapshots carry no archival state, so the captured content stays restorable
// to a live state.
func (c *ContentService) Archive(ctx context.Context, id uuid.UUID, archivedBy string) (*ContentView, error) {
	err := c.withVersionRetry(ctx, func(tx store.Store) error {
		content, err := tx.GetContentForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}
		if content.IsArchived {
			return ErrAlreadyArchived
		}

		now := time.Now()
		err = tx.UpdateContentFields(ctx, id, map[string]interface{}{
			"is_archived": true,
			"archived_at": now,
		})
		if err != nil {
			return err
		}

		return c.versioning.OnArchive(ctx, tx, id, &archivedBy)
	})
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, id)
	return c.Get(ctx, id)
}

// Unarchive brings an archived content item back to live state.
func (c *ContentService) Unarchive(ctx context.Context, id uuid.UUID, restoredBy string) (*ContentView, error) {
	err := c.withVersionRetry(ctx, func(tx store.Store) error {
		content, err := tx.GetContentForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}
		if !content.IsArchived {
			return ErrNotArchived
		}

		err = tx.UpdateContentFields(ctx, id, map[string]interface{}{
			"is_archived": false,
			"archived_at": nil,
		})
		if err != nil {
			return err
		}

		return c.versioning.OnUnarchive(ctx, tx, id, &restoredBy)
	})
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, id)
	return c.Get(ctx, id)
}

// AttachTags attaches the given tags, creating missing ones by name, and
// records a version when at least one association was added.
func (c *ContentService) AttachTags(ctx context.Context, id uuid.UUID, names []string, actor string) (attached, skipped []string, err error) {
	err = c.withVersionRetry(ctx, func(tx store.Store) error {
		attached = attached[:0]
		skipped = skipped[:0]

		if _, err := tx.GetContentForUpdate(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrContentNotFound
			}
			return err
		}

		existing, err := tx.GetContentTags(ctx, id)
		if err != nil {
			return err
		}
		existingSet := make(map[string]bool, len(existing))
		for _, name := range existing {
			existingSet[name] = true
		}

		for _, name := range normalizeTagNames(names) {
			if existingSet[name] {
				skipped = append(skipped, name)
				continue
			}

			tag, err := tx.GetOrCreateTag(ctx, name)
			if err != nil {
				return err
			}
			if err := tx.AttachTag(ctx, id, tag.ID); err != nil {
				if errors.Is(err, store.ErrDuplicateKey) {
					skipped = append(skipped, name)
					continue
				}
				return err
			}
			attached = append(attached, name)
		}

		if len(attached) == 0 {
			return nil
		}
		return c.versioning.OnTagsAdded(ctx, tx, id, &actor, attached)
	})
	if err != nil {
		return nil, nil, err
	}

	c.invalidate(ctx, id)
	return attached, skipped, nil
}

// DetachTag removes one tag association and records a version.
func (c *ContentService) DetachTag(ctx context.Context, id uuid.UUID, name string, actor string) error {
	trimmed := strings.ToLower(strings.TrimSpace(name))

	err := c.withVersionRetry(ctx, func(tx store.Store) error {
		if _, err := tx.GetContentForUpdate(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrContentNotFound
			}
			return err
		}

		tag, err := tx.GetTagByName(ctx, trimmed)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTagNotAttached
		}
		if err != nil {
			return err
		}

		removed, err := tx.DetachTag(ctx, id, tag.ID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return ErrTagNotAttached
		}

		return c.versioning.OnTagRemoved(ctx, tx, id, &actor, trimmed)
	})
	if err != nil {
		return err
	}

	c.invalidate(ctx, id)
	return nil
}

// Get retrieves a content projection, served from the cache when possible.
func (c *ContentService) Get(ctx context.Context, id uuid.UUID) (*ContentView, error) {
	if c.cache != nil {
		var view ContentView
		ok, err := c.cache.GetContent(ctx, id.String(), &view)
		if err != nil {
			logrus.Warnf("content cache read failed: %v", err)
		}
		if ok {
			return &view, nil
		}
	}

	content, err := c.store.GetContent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, err
	}

	view := newContentView(content)
	if c.cache != nil {
		if err := c.cache.SetContent(ctx, id.String(), view); err != nil {
			logrus.Warnf("content cache write failed: %v", err)
		}
	}
	return view, nil
}

// List retrieves content projections page by page.
func (c *ContentService) List(ctx context.Context, includeArchived bool, limit, offset int) ([]*ContentView, int64, error) {
	contents, total, err := c.store.ListContents(ctx, includeArchived, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*ContentView, 0, len(contents))
	for _, content := range contents {
		views = append(views, newContentView(content))
	}
	return views, total, nil
}

// ListVersions lists the version history of a content item, newest first.
func (c *ContentService) ListVersions(ctx context.Context, id uuid.UUID, limit, offset int) ([]*VersionInfo, int64, error) {
	return c.versioning.ListVersions(ctx, id, limit, offset)
}

// Restore brings the content back to the state of the named version.
func (c *ContentService) Restore(ctx context.Context, contentID, versionID uuid.UUID, restoredBy string) (*ContentView, error) {
	view, err := c.versioning.RestoreFromVersion(ctx, contentID, versionID, &restoredBy)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, contentID)
	return view, nil
}

func (c *ContentService) invalidate(ctx context.Context, id uuid.UUID) {
	if c.cache == nil {
		return
	}
	if err := c.cache.DeleteContent(ctx, id.String()); err != nil {
		logrus.Warnf("content cache invalidation failed: %v", err)
	}
}

func metadataRecord(contentID uuid.UUID, meta *model.MetadataSnapshot) *model.Metadata {
	return &model.Metadata{
		ContentID:     contentID.String(),
		Subject:       meta.Subject,
		Topic:         meta.Topic,
		Difficulty:    meta.Difficulty,
		Duration:      meta.Duration,
		Prerequisites: meta.Prerequisites,
	}
}

// normalizeTagNames trims, lowercases and dedupes tag names, dropping empties.
func normalizeTagNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		normalized = append(normalized, trimmed)
	}
	return normalized
}
