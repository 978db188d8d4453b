package store

import (
	"context"
	"time"

	"github.com/emrgen/canvas/internal/model"
)

type Store interface {
	ShareStore
	DuplicateStore
	EntityStore
	FileStore
	QuotaStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

// ShareFilter narrows ListShares. Zero fields match everything.
type ShareFilter struct {
	UID           string
	EntityID      string
	EntityType    model.EntityType
	ParentShareID string
}

type ShareStore interface {
	// CreateShare creates a new share record.
	CreateShare(ctx context.Context, share *model.Share) error
	// UpdateShare saves an existing share record.
	UpdateShare(ctx context.Context, share *model.Share) error
	// GetShareByID retrieves a non-deleted share by share ID.
	GetShareByID(ctx context.Context, shareID string) (*model.Share, error)
	// GetShareByEntity retrieves the non-deleted share for (uid, entityID, entityType).
	GetShareByEntity(ctx context.Context, uid, entityID string, t model.EntityType) (*model.Share, error)
	// ListShares retrieves non-deleted shares matching the filter.
	ListShares(ctx context.Context, filter ShareFilter) ([]*model.Share, error)
	// DeleteShares soft-deletes the given share IDs.
	DeleteShares(ctx context.Context, shareIDs []string) error
	// ListStaleShares retrieves up to limit non-deleted shares whose
	// snapshot was last written before the given time.
	ListStaleShares(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Share, error)
}

type DuplicateStore interface {
	// CreateDuplicateRecord appends one provenance ledger entry.
	CreateDuplicateRecord(ctx context.Context, record *model.DuplicateRecord) error
	// ListDuplicateRecords retrieves a user's ledger entries, newest first.
	ListDuplicateRecords(ctx context.Context, uid string) ([]*model.DuplicateRecord, error)
}

type EntityStore interface {
	CreateCanvas(ctx context.Context, canvas *model.Canvas) error
	GetCanvas(ctx context.Context, id string) (*model.Canvas, error)
	UpdateCanvas(ctx context.Context, canvas *model.Canvas) error

	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	CreateResource(ctx context.Context, resource *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)

	CreateCodeArtifact(ctx context.Context, artifact *model.CodeArtifact) error
	GetCodeArtifact(ctx context.Context, id string) (*model.CodeArtifact, error)

	CreateSkillResponse(ctx context.Context, response *model.SkillResponse) error
	GetSkillResponse(ctx context.Context, id string) (*model.SkillResponse, error)
	CreateSkillSteps(ctx context.Context, steps []*model.SkillStep) error
	ListSkillSteps(ctx context.Context, resultID string) ([]*model.SkillStep, error)

	CreatePage(ctx context.Context, page *model.Page) error
	GetPage(ctx context.Context, id string) (*model.Page, error)

	CreateWorkflowApp(ctx context.Context, app *model.WorkflowApp) error
	GetWorkflowApp(ctx context.Context, id string) (*model.WorkflowApp, error)

	// CountLibraryEntities counts a user's documents, resources and code
	// artifacts, the entities that consume storage quota.
	CountLibraryEntities(ctx context.Context, uid string) (int64, error)
}

type FileStore interface {
	// CreateStaticFile records one stored object owned by an entity.
	CreateStaticFile(ctx context.Context, file *model.StaticFile) error
	// ListStaticFilesByEntity retrieves the objects recorded for an entity.
	ListStaticFilesByEntity(ctx context.Context, entityID string) ([]*model.StaticFile, error)
	// DeleteStaticFilesByEntity soft-deletes an entity's object records.
	DeleteStaticFilesByEntity(ctx context.Context, entityID string) error
}

type QuotaStore interface {
	// GetQuota retrieves a user's storage quota row, nil when absent.
	GetQuota(ctx context.Context, uid string) (*model.StorageQuota, error)
	// SetQuotaUsed overwrites the used counter for a user.
	SetQuotaUsed(ctx context.Context, uid string, used int64) error
	// ListQuotas retrieves every quota row.
	ListQuotas(ctx context.Context) ([]*model.StorageQuota, error)
}
