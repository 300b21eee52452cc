package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhang2004/content-service/internal/compress"
	"github.com/longhang2004/content-service/internal/model"
	"github.com/longhang2004/content-service/internal/store"
	"github.com/longhang2004/content-service/internal/tester"
)

func TestVersioningService_GetVersion(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, versioning := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{Title: strPtr("B")}, actor)
	require.NoError(t, err)

	got, err := versioning.GetVersion(context.TODO(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Snapshot.Title)

	// only 2 versions exist
	_, err = versioning.GetVersion(context.TODO(), id, 99)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	byID, err := versioning.GetVersionByID(context.TODO(), uuid.MustParse(got.ID))
	require.NoError(t, err)
	assert.Equal(t, got.Version, byID.Version)

	_, err = versioning.GetVersionByID(context.TODO(), uuid.New())
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersioningService_ListVersionsEmpty(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	_, versioning := newServices()

	// an unknown content id yields an empty list, not an error
	versions, total, err := versioning.ListVersions(context.TODO(), uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, versions)
}

func TestVersioningService_CompareVersions(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, versioning := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{
		Title: strPtr("B"),
		Tags:  []string{"x"},
	}, actor)
	require.NoError(t, err)

	diff, err := versioning.CompareVersions(context.TODO(), id, 1, 2)
	require.NoError(t, err)

	assert.True(t, diff.HasChanges)
	assert.Equal(t, 1, diff.VersionA.Version)
	assert.Equal(t, 2, diff.VersionB.Version)
	require.Len(t, diff.Changes, 2)

	title, ok := diff.Changes["title"]
	require.True(t, ok)
	assert.Equal(t, "A", title.From)
	assert.Equal(t, "B", title.To)

	tags, ok := diff.Changes["tags"]
	require.True(t, ok)
	assert.Equal(t, []string{}, tags.From)
	assert.Equal(t, []string{"x"}, tags.To)

	// the diff is symmetric up to from/to labeling
	reverse, err := versioning.CompareVersions(context.TODO(), id, 2, 1)
	require.NoError(t, err)
	assert.True(t, reverse.HasChanges)
	assert.Equal(t, "B", reverse.Changes["title"].From)
	assert.Equal(t, "A", reverse.Changes["title"].To)
}

func TestVersioningService_CompareSameVersion(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, versioning := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	diff, err := versioning.CompareVersions(context.TODO(), id, 1, 1)
	require.NoError(t, err)
	assert.False(t, diff.HasChanges)
	assert.Empty(t, diff.Changes)
}

func TestVersioningService_CompareMetadataAsUnit(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, versioning := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{
		Title:       "With meta",
		ContentType: "lesson",
		Metadata:    &model.MetadataSnapshot{Subject: strPtr("math"), Topic: strPtr("algebra")},
	}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	// a single sub-field change reports the whole metadata object
	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{
		Metadata: &model.MetadataSnapshot{Subject: strPtr("math"), Topic: strPtr("calculus")},
	}, actor)
	require.NoError(t, err)

	diff, err := versioning.CompareVersions(context.TODO(), id, 1, 2)
	require.NoError(t, err)
	require.Len(t, diff.Changes, 1)

	meta, ok := diff.Changes["metadata"]
	require.True(t, ok)
	from, ok := meta.From.(*model.MetadataSnapshot)
	require.True(t, ok)
	assert.Equal(t, "algebra", *from.Topic)
	to, ok := meta.To.(*model.MetadataSnapshot)
	require.True(t, ok)
	assert.Equal(t, "calculus", *to.Topic)
}

func TestVersioningService_RestoreFromVersion(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{
		Title: strPtr("B"),
		Tags:  []string{"x"},
	}, actor)
	require.NoError(t, err)

	versions, _, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	v1 := versions[len(versions)-1]
	require.Equal(t, 1, v1.Version)

	restored, err := contents.Restore(context.TODO(), id, uuid.MustParse(v1.ID), actor)
	require.NoError(t, err)

	// content fields equal version 1's snapshot, tags reset
	assert.Equal(t, "A", restored.Title)
	assert.Equal(t, []string{}, restored.Tags)

	versions, total, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, 3, versions[0].Version)
	require.NotNil(t, versions[0].ChangeNote)
	assert.Contains(t, *versions[0].ChangeNote, "Restored from version 1")
	require.NotNil(t, versions[0].CreatedBy)
	assert.Equal(t, actor, *versions[0].CreatedBy)

	// the appended snapshot equals the restored one
	assert.Equal(t, "A", versions[0].Snapshot.Title)
	assert.Equal(t, []string{}, versions[0].Snapshot.Tags)
}

func TestVersioningService_RestoreIsIdempotent(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{
		Title:       "Original",
		Body:        strPtr("original body"),
		ContentType: "lesson",
		Tags:        []string{"keep"},
	}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{
		Title: strPtr("Changed"),
		Body:  strPtr("changed body"),
		Tags:  []string{"drop"},
	}, actor)
	require.NoError(t, err)

	versions, _, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	v1 := versions[len(versions)-1]

	first, err := contents.Restore(context.TODO(), id, uuid.MustParse(v1.ID), actor)
	require.NoError(t, err)

	second, err := contents.Restore(context.TODO(), id, uuid.MustParse(v1.ID), actor)
	require.NoError(t, err)

	// both restores yield the same content state
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, "Original", second.Title)
	require.NotNil(t, second.Body)
	assert.Equal(t, "original body", *second.Body)
	assert.Equal(t, []string{"keep"}, second.Tags)

	_, total, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestVersioningService_RestoreClearsArchivalState(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	// the "Archived" version's snapshot was captured while archived
	archived, err := contents.Archive(context.TODO(), id, actor)
	require.NoError(t, err)
	require.True(t, archived.IsArchived)

	versions, _, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	archiveVersion := versions[0]
	require.Equal(t, "Archived", *archiveVersion.ChangeNote)

	restored, err := contents.Restore(context.TODO(), id, uuid.MustParse(archiveVersion.ID), actor)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
	assert.Nil(t, restored.ArchivedAt)
}

func TestVersioningService_RestoreKeepsMetadataWhenNotCaptured(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	// version 1 carries no metadata
	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "A", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{
		Metadata: &model.MetadataSnapshot{Subject: strPtr("math")},
	}, actor)
	require.NoError(t, err)

	versions, _, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	v1 := versions[len(versions)-1]
	require.Nil(t, v1.Snapshot.Metadata)

	// a nil snapshot metadata asserts nothing, existing metadata stays
	restored, err := contents.Restore(context.TODO(), id, uuid.MustParse(v1.ID), actor)
	require.NoError(t, err)
	require.NotNil(t, restored.Metadata)
	assert.Equal(t, "math", *restored.Metadata.Subject)
}

func TestVersioningService_RestoreRejectsForeignVersion(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	first, err := contents.Create(context.TODO(), &CreateContentInput{Title: "First", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	firstID := uuid.MustParse(first.ID)

	second, err := contents.Create(context.TODO(), &CreateContentInput{Title: "Second", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	secondID := uuid.MustParse(second.ID)

	foreign, _, err := contents.ListVersions(context.TODO(), secondID, 0, 0)
	require.NoError(t, err)

	_, err = contents.Restore(context.TODO(), firstID, uuid.MustParse(foreign[0].ID), actor)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	// no state change happened
	got, err := contents.Get(context.TODO(), firstID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)

	_, total, err := contents.ListVersions(context.TODO(), firstID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestVersioningService_CompressedSnapshotLifecycle(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	gormStore := store.NewGormStore(tester.TestDB())
	versioning := NewVersioningService(compress.NewGZip(), gormStore)
	contents := NewContentService(gormStore, versioning, nil)
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{
		Title:       "Compressed",
		ContentType: "lesson",
		Tags:        []string{"zip"},
	}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	_, err = contents.Update(context.TODO(), id, &UpdateContentInput{Title: strPtr("Changed")}, actor)
	require.NoError(t, err)

	// the stored blob is compressed binary, not the raw JSON
	row, err := gormStore.GetVersion(context.TODO(), id, 1)
	require.NoError(t, err)
	assert.False(t, json.Valid(row.Snapshot))

	versions, _, err := versioning.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Compressed", versions[1].Snapshot.Title)

	restored, err := contents.Restore(context.TODO(), id, uuid.MustParse(versions[1].ID), actor)
	require.NoError(t, err)
	assert.Equal(t, "Compressed", restored.Title)
	assert.Equal(t, []string{"zip"}, restored.Tags)
}

func TestVersioningService_ConcurrentUpdatesStayGapless(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	contents, _ := newServices()
	actor := uuid.New().String()

	view, err := contents.Create(context.TODO(), &CreateContentInput{Title: "Contended", ContentType: "lesson"}, actor)
	require.NoError(t, err)
	id := uuid.MustParse(view.ID)

	const writers = 4
	const updatesPerWriter = 3

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for u := 0; u < updatesPerWriter; u++ {
				_, err := contents.Update(context.TODO(), id, &UpdateContentInput{
					Body: strPtr(fmt.Sprintf("writer %d update %d", w, u)),
				}, actor)
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	require.Greater(t, successes, 0)

	// whatever the interleaving, the recorded versions are exactly 1..N
	versions, total, err := contents.ListVersions(context.TODO(), id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(successes+1), total)
	for i, ver := range versions {
		assert.Equal(t, int(total)-i, ver.Version)
	}
}
