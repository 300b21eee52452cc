package store

import (
	"context"
	"errors"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/longhang2004/content-service/internal/model"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

// translate maps gorm errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	// sqlite without error translation reports constraint text directly
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateKey
	}
	return err
}

func (g *GormStore) CreateContent(ctx context.Context, content *model.Content) error {
	return translate(g.db.WithContext(ctx).Create(content).Error)
}

func (g *GormStore) GetContent(ctx context.Context, id uuid.UUID) (*model.Content, error) {
	var content model.Content
	err := g.db.WithContext(ctx).
		Preload("Metadata").
		Preload("Tags.Tag").
		Where("id = ?", id.String()).
		First(&content).Error
	if err != nil {
		return nil, translate(err)
	}
	return &content, nil
}

func (g *GormStore) GetContentForUpdate(ctx context.Context, id uuid.UUID) (*model.Content, error) {
	tx := g.db.WithContext(ctx)
	// sqlite serializes writers on its own and rejects FOR UPDATE
	if g.db.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var content model.Content
	err := tx.Where("id = ?", id.String()).First(&content).Error
	if err != nil {
		return nil, translate(err)
	}
	return &content, nil
}

func (g *GormStore) ListContents(ctx context.Context, includeArchived bool, limit, offset int) ([]*model.Content, int64, error) {
	query := g.db.WithContext(ctx).Model(&model.Content{})
	if !includeArchived {
		query = query.Where("is_archived = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var contents []*model.Content
	err := query.
		Preload("Metadata").
		Preload("Tags.Tag").
		Order("created_at desc").
		Find(&contents).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return contents, total, nil
}

func (g *GormStore) UpdateContent(ctx context.Context, content *model.Content) error {
	return translate(g.db.WithContext(ctx).Save(content).Error)
}

func (g *GormStore) UpdateContentFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return translate(g.db.WithContext(ctx).
		Model(&model.Content{}).
		Where("id = ?", id.String()).
		Updates(fields).Error)
}

func (g *GormStore) DeleteContent(ctx context.Context, id uuid.UUID) error {
	return translate(g.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&model.Content{}).Error)
}

func (g *GormStore) GetMetadata(ctx context.Context, contentID uuid.UUID) (*model.Metadata, error) {
	var meta model.Metadata
	err := g.db.WithContext(ctx).Where("content_id = ?", contentID.String()).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &meta, nil
}

func (g *GormStore) UpsertMetadata(ctx context.Context, meta *model.Metadata) error {
	return translate(g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"subject", "topic", "difficulty", "duration", "prerequisites", "updated_at",
			}),
		}).
		Create(meta).Error)
}

func (g *GormStore) GetContentTags(ctx context.Context, contentID uuid.UUID) ([]string, error) {
	var names []string
	err := g.db.WithContext(ctx).
		Model(&model.ContentTag{}).
		Joins("JOIN tags ON tags.id = content_tags.tag_id").
		Where("content_tags.content_id = ?", contentID.String()).
		Order("tags.name asc").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, translate(err)
	}
	return names, nil
}

func (g *GormStore) GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error) {
	tag, err := g.GetTagByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tag = &model.Tag{ID: uuid.New().String(), Name: name}
	err = translate(g.db.WithContext(ctx).Create(tag).Error)
	if errors.Is(err, ErrDuplicateKey) {
		// another writer created it first
		return g.GetTagByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (g *GormStore) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

func (g *GormStore) AttachTag(ctx context.Context, contentID uuid.UUID, tagID string) error {
	return translate(g.db.WithContext(ctx).Create(&model.ContentTag{
		ContentID: contentID.String(),
		TagID:     tagID,
	}).Error)
}

func (g *GormStore) DetachTag(ctx context.Context, contentID uuid.UUID, tagID string) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("content_id = ? AND tag_id = ?", contentID.String(), tagID).
		Delete(&model.ContentTag{})
	return res.RowsAffected, translate(res.Error)
}

func (g *GormStore) ReplaceContentTags(ctx context.Context, contentID uuid.UUID, names []string) error {
	err := g.db.WithContext(ctx).
		Where("content_id = ?", contentID.String()).
		Delete(&model.ContentTag{}).Error
	if err != nil {
		return translate(err)
	}

	for _, name := range names {
		tag, err := g.GetOrCreateTag(ctx, name)
		if err != nil {
			return err
		}
		if err := g.AttachTag(ctx, contentID, tag.ID); err != nil {
			return err
		}
	}

	return nil
}

func (g *GormStore) CreateVersion(ctx context.Context, version *model.ContentVersion) error {
	return translate(g.db.WithContext(ctx).Create(version).Error)
}

func (g *GormStore) ListVersions(ctx context.Context, contentID uuid.UUID, limit, offset int) ([]*model.ContentVersion, int64, error) {
	query := g.db.WithContext(ctx).
		Model(&model.ContentVersion{}).
		Where("content_id = ?", contentID.String())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var versions []*model.ContentVersion
	err := query.Order("version desc").Find(&versions).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return versions, total, nil
}

func (g *GormStore) GetVersion(ctx context.Context, contentID uuid.UUID, version int) (*model.ContentVersion, error) {
	var ver model.ContentVersion
	err := g.db.WithContext(ctx).
		Where("content_id = ? AND version = ?", contentID.String(), version).
		First(&ver).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ver, nil
}

func (g *GormStore) GetVersionByID(ctx context.Context, id uuid.UUID) (*model.ContentVersion, error) {
	var ver model.ContentVersion
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&ver).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ver, nil
}

func (g *GormStore) MaxVersion(ctx context.Context, contentID uuid.UUID) (int, error) {
	var max int
	// Unscoped so retention-pruned rows keep the sequence monotonic
	err := g.db.WithContext(ctx).
		Unscoped().
		Model(&model.ContentVersion{}).
		Where("content_id = ?", contentID.String()).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, translate(err)
	}
	return max, nil
}

func (g *GormStore) ListVersionsByCreatedTime(ctx context.Context, from, to time.Time) ([]*model.ContentVersion, error) {
	var versions []*model.ContentVersion
	err := g.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("content_id, version asc").
		Find(&versions).Error
	if err != nil {
		return nil, translate(err)
	}
	return versions, nil
}

func (g *GormStore) DeleteVersions(ctx context.Context, remove map[string]mapset.Set[int]) error {
	for contentID, versions := range remove {
		if versions.Cardinality() == 0 {
			continue
		}
		err := g.db.WithContext(ctx).
			Where("content_id = ? AND version IN (?)", contentID, versions.ToSlice()).
			Delete(&model.ContentVersion{}).Error
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
