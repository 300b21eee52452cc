package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/longhang2004/content-service/internal/compress"
	"github.com/longhang2004/content-service/internal/model"
	"github.com/longhang2004/content-service/internal/store"
)

// maxVersionAttempts bounds the sequence-and-insert retries when concurrent
// writers race on the (contentId, version) unique key.
const maxVersionAttempts = 3

// NewVersioningService creates a new VersioningService.
func NewVersioningService(compress compress.Compress, store store.Store) *VersioningService {
	return &VersioningService{
		compress: compress,
		store:    store,
	}
}

// VersioningService owns the append-only version log: it builds snapshots
// from live content, allocates version numbers, restores content from past
// snapshots and diffs two snapshots.
//
// Version numbers per content item are dense, starting at 1. The number is
// computed as max(version)+1 inside the same transaction as the insert; the
// unique key on (content_id, version) turns a lost race into a duplicate-key
// error the caller retries.
type VersioningService struct {
	compress compress.Compress
	store    store.Store
}

// encodeSnapshot serializes and compresses a snapshot into the blob stored in
// the version row. The column is a byte column, codec output need not be
// valid text.
func (v *VersioningService) encodeSnapshot(snap *model.Snapshot) ([]byte, error) {
	data, err := snap.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return v.compress.Encode(data)
}

func (v *VersioningService) decodeSnapshot(blob []byte) (*model.Snapshot, error) {
	data, err := v.compress.Decode(blob)
	if err != nil {
		return nil, err
	}
	snap := &model.Snapshot{}
	if err := snap.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if snap.Tags == nil {
		snap.Tags = make([]string, 0)
	}
	return snap, nil
}

// BuildSnapshot reads the current content row, its metadata and tag
// associations through s and assembles a snapshot. Pure read.
func (v *VersioningService) BuildSnapshot(ctx context.Context, s store.Store, contentID uuid.UUID) (*model.Snapshot, error) {
	content, err := s.GetContent(ctx, contentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, err
	}

	tags, err := s.GetContentTags(ctx, contentID)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		Title:       content.Title,
		Body:        content.Body,
		ContentType: content.ContentType,
		ResourceURL: content.ResourceURL,
		HierarchyID: content.HierarchyID,
		Tags:        tags,
	}

	if content.Metadata != nil {
		snap.Metadata = &model.MetadataSnapshot{
			Subject:       content.Metadata.Subject,
			Topic:         content.Metadata.Topic,
			Difficulty:    content.Metadata.Difficulty,
			Duration:      content.Metadata.Duration,
			Prerequisites: content.Metadata.Prerequisites,
		}
	}

	return snap, nil
}

// NextVersion returns max(version)+1 for the content item. Only meaningful
// inside the transaction that also performs the insert.
func (v *VersioningService) NextVersion(ctx context.Context, s store.Store, contentID uuid.UUID) (int, error) {
	max, err := s.MaxVersion(ctx, contentID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// AppendVersion inserts one immutable version row. A duplicate-key error
// from the (content_id, version) unique index propagates unchanged so the
// caller can recompute the number and retry.
func (v *VersioningService) AppendVersion(ctx context.Context, s store.Store, contentID uuid.UUID, snap *model.Snapshot, version int, changeNote string, createdBy *string) (*model.ContentVersion, error) {
	blob, err := v.encodeSnapshot(snap)
	if err != nil {
		return nil, err
	}

	row := &model.ContentVersion{
		ID:        uuid.New().String(),
		ContentID: contentID.String(),
		Version:   version,
		Snapshot:  blob,
		CreatedBy: createdBy,
	}
	if changeNote != "" {
		row.ChangeNote = &changeNote
	}

	if err := s.CreateVersion(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// Record captures the current state of the content item as its next version.
func (v *VersioningService) Record(ctx context.Context, tx store.Store, contentID uuid.UUID, changeNote string, createdBy *string) error {
	snap, err := v.BuildSnapshot(ctx, tx, contentID)
	if err != nil {
		return err
	}

	next, err := v.NextVersion(ctx, tx, contentID)
	if err != nil {
		return err
	}

	_, err = v.AppendVersion(ctx, tx, contentID, snap, next, changeNote, createdBy)
	return err
}

// OnCreate records version 1. Called inside the transaction that created the
// content row, so version 1 exists exactly once per content item.
func (v *VersioningService) OnCreate(ctx context.Context, tx store.Store, contentID uuid.UUID, authorID string) error {
	snap, err := v.BuildSnapshot(ctx, tx, contentID)
	if err != nil {
		return err
	}
	_, err = v.AppendVersion(ctx, tx, contentID, snap, 1, "Initial creation", &authorID)
	return err
}

// OnUpdate records the post-write state of an updated content item.
func (v *VersioningService) OnUpdate(ctx context.Context, tx store.Store, contentID uuid.UUID, updatedBy *string, changeNote string) error {
	if changeNote == "" {
		changeNote = "Content updated"
	}
	return v.Record(ctx, tx, contentID, changeNote, updatedBy)
}

func (v *VersioningService) OnArchive(ctx context.Context, tx store.Store, contentID uuid.UUID, archivedBy *string) error {
	return v.Record(ctx, tx, contentID, "Archived", archivedBy)
}

func (v *VersioningService) OnUnarchive(ctx context.Context, tx store.Store, contentID uuid.UUID, restoredBy *string) error {
	return v.Record(ctx, tx, contentID, "Restored from archive", restoredBy)
}

func (v *VersioningService) OnTagsAdded(ctx context.Context, tx store.Store, contentID uuid.UUID, actor *string, names []string) error {
	return v.Record(ctx, tx, contentID, "Tags added: "+strings.Join(names, ", "), actor)
}

func (v *VersioningService) OnTagRemoved(ctx context.Context, tx store.Store, contentID uuid.UUID, actor *string, name string) error {
	return v.Record(ctx, tx, contentID, "Tag removed: "+name, actor)
}

// ListVersions retrieves the version log newest first. An unknown content id
// yields an empty list, not an error.
func (v *VersioningService) ListVersions(ctx context.Context, contentID uuid.UUID, limit, offset int) ([]*VersionInfo, int64, error) {
	rows, total, err := v.store.ListVersions(ctx, contentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	versions := make([]*VersionInfo, 0, len(rows))
	for _, row := range rows {
		info, err := v.newVersionInfo(row)
		if err != nil {
			return nil, 0, err
		}
		versions = append(versions, info)
	}
	return versions, total, nil
}

// GetVersion retrieves one version by its number.
func (v *VersioningService) GetVersion(ctx context.Context, contentID uuid.UUID, version int) (*VersionInfo, error) {
	row, err := v.store.GetVersion(ctx, contentID, version)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.newVersionInfo(row)
}

// GetVersionByID retrieves one version by its id.
func (v *VersioningService) GetVersionByID(ctx context.Context, id uuid.UUID) (*VersionInfo, error) {
	row, err := v.store.GetVersionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.newVersionInfo(row)
}

func (v *VersioningService) newVersionInfo(row *model.ContentVersion) (*VersionInfo, error) {
	snap, err := v.decodeSnapshot(row.Snapshot)
	if err != nil {
		return nil, err
	}
	return &VersionInfo{
		ID:         row.ID,
		ContentID:  row.ContentID,
		Version:    row.Version,
		Snapshot:   snap,
		ChangeNote: row.ChangeNote,
		CreatedBy:  row.CreatedBy,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// RestoreFromVersion brings the content item back to the state captured in
// the named version and appends a new version documenting the restore. The
// content fields, metadata, tag associations and the version append happen in
// one transaction; a failed restore leaves no partial state behind.
//
// Restoring always clears archival state. Snapshots never carry archival
// flags, a restore means "bring the content back to an earlier live state".
func (v *VersioningService) RestoreFromVersion(ctx context.Context, contentID, versionID uuid.UUID, restoredBy *string) (*ContentView, error) {
	var view *ContentView
	var err error

	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		err = v.store.Transaction(ctx, func(tx store.Store) error {
			row, err := tx.GetVersionByID(ctx, versionID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrVersionNotFound
			}
			if err != nil {
				return err
			}

			if row.ContentID != contentID.String() {
				return ErrVersionMismatch
			}

			snap, err := v.decodeSnapshot(row.Snapshot)
			if err != nil {
				return err
			}

			// lock the content row so same-content writers serialize
			if _, err := tx.GetContentForUpdate(ctx, contentID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrContentNotFound
				}
				return err
			}

			next, err := v.NextVersion(ctx, tx, contentID)
			if err != nil {
				return err
			}

			err = tx.UpdateContentFields(ctx, contentID, map[string]interface{}{
				"title":        snap.Title,
				"body":         snap.Body,
				"content_type": snap.ContentType,
				"resource_url": snap.ResourceURL,
				"hierarchy_id": snap.HierarchyID,
				"is_archived":  false,
				"archived_at":  nil,
			})
			if err != nil {
				return err
			}

			// a nil snapshot metadata means "not captured", not "absent";
			// existing metadata stays untouched in that case
			if snap.Metadata != nil {
				err = tx.UpsertMetadata(ctx, &model.Metadata{
					ContentID:     contentID.String(),
					Subject:       snap.Metadata.Subject,
					Topic:         snap.Metadata.Topic,
					Difficulty:    snap.Metadata.Difficulty,
					Duration:      snap.Metadata.Duration,
					Prerequisites: snap.Metadata.Prerequisites,
				})
				if err != nil {
					return err
				}
			}

			if err := tx.ReplaceContentTags(ctx, contentID, snap.Tags); err != nil {
				return err
			}

			note := fmt.Sprintf("Restored from version %d", row.Version)
			if _, err := v.AppendVersion(ctx, tx, contentID, snap, next, note, restoredBy); err != nil {
				return err
			}

			restored, err := tx.GetContent(ctx, contentID)
			if err != nil {
				return err
			}
			view = newContentView(restored)
			return nil
		})

		if !errors.Is(err, store.ErrDuplicateKey) {
			break
		}
		logrus.Warnf("restore of content %s raced on version allocation, retrying", contentID)
	}

	if errors.Is(err, store.ErrDuplicateKey) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}
