package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/canvas/internal/model"
	"gorm.io/gorm"
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

func (g *GormStore) CreateShare(ctx context.Context, share *model.Share) error {
	return g.db.WithContext(ctx).Create(share).Error
}

func (g *GormStore) UpdateShare(ctx context.Context, share *model.Share) error {
	return g.db.WithContext(ctx).Save(share).Error
}

func (g *GormStore) GetShareByID(ctx context.Context, shareID string) (*model.Share, error) {
	var share model.Share
	err := g.db.WithContext(ctx).Where("id = ?", shareID).First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (g *GormStore) GetShareByEntity(ctx context.Context, uid, entityID string, t model.EntityType) (*model.Share, error) {
	var share model.Share
	err := g.db.WithContext(ctx).
		Where("uid = ? AND entity_id = ? AND entity_type = ?", uid, entityID, string(t)).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (g *GormStore) ListShares(ctx context.Context, filter ShareFilter) ([]*model.Share, error) {
	query := g.db.WithContext(ctx)
	if filter.UID != "" {
		query = query.Where("uid = ?", filter.UID)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", string(filter.EntityType))
	}
	if filter.ParentShareID != "" {
		query = query.Where("parent_share_id = ?", filter.ParentShareID)
	}

	var shares []*model.Share
	err := query.Order("created_at desc").Find(&shares).Error
	return shares, err
}

func (g *GormStore) DeleteShares(ctx context.Context, shareIDs []string) error {
	if len(shareIDs) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Where("id in (?)", shareIDs).Delete(&model.Share{}).Error
}

func (g *GormStore) ListStaleShares(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Share, error) {
	var shares []*model.Share
	err := g.db.WithContext(ctx).
		Where("updated_at < ?", updatedBefore).
		Order("updated_at asc").
		Limit(limit).
		Find(&shares).Error
	return shares, err
}

func (g *GormStore) CreateDuplicateRecord(ctx context.Context, record *model.DuplicateRecord) error {
	return g.db.WithContext(ctx).Create(record).Error
}

func (g *GormStore) ListDuplicateRecords(ctx context.Context, uid string) ([]*model.DuplicateRecord, error) {
	var records []*model.DuplicateRecord
	err := g.db.WithContext(ctx).Where("uid = ?", uid).Order("created_at desc").Find(&records).Error
	return records, err
}

func (g *GormStore) CreateCanvas(ctx context.Context, canvas *model.Canvas) error {
	return g.db.WithContext(ctx).Create(canvas).Error
}

func (g *GormStore) GetCanvas(ctx context.Context, id string) (*model.Canvas, error) {
	var canvas model.Canvas
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&canvas).Error
	if err != nil {
		return nil, err
	}
	return &canvas, nil
}

func (g *GormStore) UpdateCanvas(ctx context.Context, canvas *model.Canvas) error {
	return g.db.WithContext(ctx).Save(canvas).Error
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Create(doc).Error
}

func (g *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GormStore) CreateResource(ctx context.Context, resource *model.Resource) error {
	return g.db.WithContext(ctx).Create(resource).Error
}

func (g *GormStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	var resource model.Resource
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&resource).Error
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

func (g *GormStore) CreateCodeArtifact(ctx context.Context, artifact *model.CodeArtifact) error {
	return g.db.WithContext(ctx).Create(artifact).Error
}

func (g *GormStore) GetCodeArtifact(ctx context.Context, id string) (*model.CodeArtifact, error) {
	var artifact model.CodeArtifact
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (g *GormStore) CreateSkillResponse(ctx context.Context, response *model.SkillResponse) error {
	return g.db.WithContext(ctx).Create(response).Error
}

func (g *GormStore) GetSkillResponse(ctx context.Context, id string) (*model.SkillResponse, error) {
	var response model.SkillResponse
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&response).Error
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (g *GormStore) CreateSkillSteps(ctx context.Context, steps []*model.SkillStep) error {
	if len(steps) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Create(steps).Error
}

func (g *GormStore) ListSkillSteps(ctx context.Context, resultID string) ([]*model.SkillStep, error) {
	var steps []*model.SkillStep
	err := g.db.WithContext(ctx).Where("result_id = ?", resultID).Order("id asc").Find(&steps).Error
	return steps, err
}

func (g *GormStore) CreatePage(ctx context.Context, page *model.Page) error {
	return g.db.WithContext(ctx).Create(page).Error
}

func (g *GormStore) GetPage(ctx context.Context, id string) (*model.Page, error) {
	var page model.Page
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (g *GormStore) CreateWorkflowApp(ctx context.Context, app *model.WorkflowApp) error {
	return g.db.WithContext(ctx).Create(app).Error
}

func (g *GormStore) GetWorkflowApp(ctx context.Context, id string) (*model.WorkflowApp, error) {
	var app model.WorkflowApp
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (g *GormStore) CountLibraryEntities(ctx context.Context, uid string) (int64, error) {
	var total int64
	for _, m := range []any{&model.Document{}, &model.Resource{}, &model.CodeArtifact{}} {
		var count int64
		if err := g.db.WithContext(ctx).Model(m).Where("uid = ?", uid).Count(&count).Error; err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

func (g *GormStore) CreateStaticFile(ctx context.Context, file *model.StaticFile) error {
	return g.db.WithContext(ctx).Create(file).Error
}

func (g *GormStore) ListStaticFilesByEntity(ctx context.Context, entityID string) ([]*model.StaticFile, error) {
	var files []*model.StaticFile
	err := g.db.WithContext(ctx).Where("entity_id = ?", entityID).Find(&files).Error
	return files, err
}

func (g *GormStore) DeleteStaticFilesByEntity(ctx context.Context, entityID string) error {
	return g.db.WithContext(ctx).Where("entity_id = ?", entityID).Delete(&model.StaticFile{}).Error
}

func (g *GormStore) GetQuota(ctx context.Context, uid string) (*model.StorageQuota, error) {
	var quota model.StorageQuota
	err := g.db.WithContext(ctx).Where("uid = ?", uid).First(&quota).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quota, nil
}

func (g *GormStore) SetQuotaUsed(ctx context.Context, uid string, used int64) error {
	return g.db.WithContext(ctx).Model(&model.StorageQuota{}).
		Where("uid = ?", uid).Update("file_count_used", used).Error
}

func (g *GormStore) ListQuotas(ctx context.Context) ([]*model.StorageQuota, error) {
	var quotas []*model.StorageQuota
	err := g.db.WithContext(ctx).Find(&quotas).Error
	return quotas, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
