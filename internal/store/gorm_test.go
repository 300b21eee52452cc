package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/longhang2004/content-service/internal/model"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")+"?_busy_timeout=10000"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := NewGormStore(db)
	require.NoError(t, s.Migrate())
	return s
}

func newContent(title string) *model.Content {
	return &model.Content{
		ID:          uuid.New().String(),
		Title:       title,
		ContentType: "lesson",
		AuthorID:    uuid.New().String(),
	}
}

func TestGormStore_ContentRoundTrip(t *testing.T) {
	s := newTestStore(t)

	content := newContent("round trip")
	require.NoError(t, s.CreateContent(context.TODO(), content))

	got, err := s.GetContent(context.TODO(), uuid.MustParse(content.ID))
	require.NoError(t, err)
	assert.Equal(t, content.Title, got.Title)
	assert.Nil(t, got.Metadata)
	assert.Empty(t, got.Tags)

	_, err = s.GetContent(context.TODO(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_VersionUniqueConstraint(t *testing.T) {
	s := newTestStore(t)

	contentID := uuid.New().String()
	require.NoError(t, s.CreateVersion(context.TODO(), &model.ContentVersion{
		ID:        uuid.New().String(),
		ContentID: contentID,
		Version:   1,
		Snapshot:  []byte("{}"),
	}))

	// a second row claiming the same (content, version) must be rejected
	err := s.CreateVersion(context.TODO(), &model.ContentVersion{
		ID:        uuid.New().String(),
		ContentID: contentID,
		Version:   1,
		Snapshot:  []byte("{}"),
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// the same version number under another content is fine
	require.NoError(t, s.CreateVersion(context.TODO(), &model.ContentVersion{
		ID:        uuid.New().String(),
		ContentID: uuid.New().String(),
		Version:   1,
		Snapshot:  []byte("{}"),
	}))
}

func TestGormStore_MaxVersion(t *testing.T) {
	s := newTestStore(t)

	contentID := uuid.New()
	max, err := s.MaxVersion(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	for v := 1; v <= 3; v++ {
		require.NoError(t, s.CreateVersion(context.TODO(), &model.ContentVersion{
			ID:        uuid.New().String(),
			ContentID: contentID.String(),
			Version:   v,
			Snapshot:  []byte("{}"),
		}))
	}

	max, err = s.MaxVersion(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Equal(t, 3, max)

	// retention prunes are soft deletes and must not shrink the sequence
	remove := map[string]mapset.Set[int]{
		contentID.String(): mapset.NewSet(3),
	}
	require.NoError(t, s.DeleteVersions(context.TODO(), remove))

	_, err = s.GetVersion(context.TODO(), contentID, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	max, err = s.MaxVersion(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Equal(t, 3, max)
}

func TestGormStore_ListVersionsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	contentID := uuid.New()
	for v := 1; v <= 5; v++ {
		require.NoError(t, s.CreateVersion(context.TODO(), &model.ContentVersion{
			ID:        uuid.New().String(),
			ContentID: contentID.String(),
			Version:   v,
			Snapshot:  []byte("{}"),
		}))
	}

	versions, total, err := s.ListVersions(context.TODO(), contentID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, versions, 2)
	assert.Equal(t, 4, versions[0].Version)
	assert.Equal(t, 3, versions[1].Version)
}

func TestGormStore_MetadataUpsert(t *testing.T) {
	s := newTestStore(t)

	contentID := uuid.New()
	meta, err := s.GetMetadata(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Nil(t, meta)

	subject := "math"
	require.NoError(t, s.UpsertMetadata(context.TODO(), &model.Metadata{
		ContentID: contentID.String(),
		Subject:   &subject,
	}))

	// a second upsert overwrites in place instead of failing on the key
	updated := "physics"
	duration := 45
	require.NoError(t, s.UpsertMetadata(context.TODO(), &model.Metadata{
		ContentID: contentID.String(),
		Subject:   &updated,
		Duration:  &duration,
	}))

	meta, err = s.GetMetadata(context.TODO(), contentID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "physics", *meta.Subject)
	require.NotNil(t, meta.Duration)
	assert.Equal(t, 45, *meta.Duration)
}

func TestGormStore_ReplaceContentTags(t *testing.T) {
	s := newTestStore(t)

	content := newContent("tagged")
	require.NoError(t, s.CreateContent(context.TODO(), content))
	contentID := uuid.MustParse(content.ID)

	require.NoError(t, s.ReplaceContentTags(context.TODO(), contentID, []string{"go", "db"}))
	names, err := s.GetContentTags(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "go"}, names)

	// replacement drops what the new set does not contain
	require.NoError(t, s.ReplaceContentTags(context.TODO(), contentID, []string{"go"}))
	names, err = s.GetContentTags(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, names)

	require.NoError(t, s.ReplaceContentTags(context.TODO(), contentID, nil))
	names, err = s.GetContentTags(context.TODO(), contentID)
	require.NoError(t, err)
	assert.Empty(t, names)

	// tag records themselves survive detachment for reuse
	tag, err := s.GetTagByName(context.TODO(), "go")
	require.NoError(t, err)
	assert.NotEmpty(t, tag.ID)
}

func TestGormStore_DetachTag(t *testing.T) {
	s := newTestStore(t)

	content := newContent("detach")
	require.NoError(t, s.CreateContent(context.TODO(), content))
	contentID := uuid.MustParse(content.ID)

	tag, err := s.GetOrCreateTag(context.TODO(), "solo")
	require.NoError(t, err)
	require.NoError(t, s.AttachTag(context.TODO(), contentID, tag.ID))

	affected, err := s.DetachTag(context.TODO(), contentID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = s.DetachTag(context.TODO(), contentID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestGormStore_TransactionRollback(t *testing.T) {
	s := newTestStore(t)

	content := newContent("rolled back")
	boom := errors.New("boom")

	err := s.Transaction(context.TODO(), func(tx Store) error {
		if err := tx.CreateContent(context.TODO(), content); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetContent(context.TODO(), uuid.MustParse(content.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}
