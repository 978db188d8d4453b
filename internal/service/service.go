package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emrgen/canvas/internal/cache"
	"github.com/emrgen/canvas/internal/compress"
	"github.com/emrgen/canvas/internal/crdt"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/ratelimit"
	"github.com/emrgen/canvas/internal/search"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
	"github.com/emrgen/canvas/internal/toolset"
	"github.com/emrgen/canvas/internal/vector"
	"github.com/sirupsen/logrus"
)

// Bounded fan-out ceilings, per call site.
const (
	publishNodeConcurrency   = 5
	publishMediaConcurrency  = 3
	duplicateNodeConcurrency = 5
)

const shareDataTTL = 5 * time.Minute

// EntityRef names one entity by identifier and type.
type EntityRef struct {
	EntityID   string
	EntityType model.EntityType
}

// PublishOptions control one publish call.
type PublishOptions struct {
	ParentShareID    string
	TemplateID       string
	AllowDuplication bool
	// Title overrides the entity's own title when non-empty.
	Title string
}

// DuplicateTarget names where a duplicated entity should land.
// PreallocatedID is set when the call is part of a larger graph
// duplication; standalone duplication allocates fresh.
type DuplicateTarget struct {
	ProjectID      string
	CanvasID       string
	PreallocatedID string
}

// Deps wires the service's collaborators. Queue, Cache and Limiter are
// optional; a nil Queue selects synchronous processing.
type Deps struct {
	Store    store.Store
	Objects  storage.ObjectStore
	Index    search.Indexer
	Vectors  vector.Store
	Pages    crdt.Codec
	Toolsets toolset.Importer
	Queue    queue.JobQueue
	Cache    *cache.Redis
	Limiter  *ratelimit.Limiter
	// Compression names the codec for newly written canvas state.
	Compression string
}

// ShareService is the publish/duplicate engine.
type ShareService struct {
	store       store.Store
	objects     storage.ObjectStore
	index       search.Indexer
	vectors     vector.Store
	pages       crdt.Codec
	toolsets    toolset.Importer
	queue       queue.JobQueue
	cache       *cache.Redis
	limiter     *ratelimit.Limiter
	compression string
}

// NewShareService creates a new ShareService.
func NewShareService(deps Deps) *ShareService {
	if deps.Index == nil {
		deps.Index = search.NewNoop()
	}
	if deps.Vectors == nil {
		deps.Vectors = vector.NewNoop()
	}
	if deps.Pages == nil {
		deps.Pages = crdt.NewJSONCodec()
	}
	if deps.Toolsets == nil {
		deps.Toolsets = toolset.NewNoopImporter()
	}

	return &ShareService{
		store:       deps.Store,
		objects:     deps.Objects,
		index:       deps.Index,
		vectors:     deps.Vectors,
		pages:       deps.Pages,
		toolsets:    deps.Toolsets,
		queue:       deps.Queue,
		cache:       deps.Cache,
		limiter:     deps.Limiter,
		compression: deps.Compression,
	}
}

// CreateShare publishes an entity. The call is idempotent per
// (uid, entityID, entityType): an existing non-deleted share is returned
// immediately, with a refresh job enqueued when a queue is configured and
// the same processing run synchronously otherwise.
func (s *ShareService) CreateShare(ctx context.Context, uid string, ref EntityRef, opts PublishOptions) (*model.Share, error) {
	if ref.EntityID == "" || !ref.EntityType.Valid() {
		return nil, fmt.Errorf("%w: unsupported entity ref %q/%q", ErrParams, ref.EntityID, ref.EntityType)
	}
	if err := s.allow(ctx, uid, ref.EntityID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetShareByEntity(ctx, uid, ref.EntityID, ref.EntityType)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}

	if existing != nil && s.queue != nil {
		if err := s.queue.Enqueue(ctx, queue.JobRefreshShare, map[string]string{"shareId": existing.ID}); err != nil {
			logrus.Errorf("share %s: enqueue refresh: %v", existing.ID, err)
		}
		return existing, nil
	}

	// the caller's options win on a synchronous re-publish; the
	// background refresh path keeps the stored ones
	return s.processShare(ctx, uid, ref, opts)
}

// processShare runs the per-type publish handler. It is the single
// reusable processing function invoked both from the request path and
// from the background refresh job.
func (s *ShareService) processShare(ctx context.Context, uid string, ref EntityRef, opts PublishOptions) (*model.Share, error) {
	switch ref.EntityType {
	case model.EntityTypeCanvas:
		return s.publishCanvas(ctx, uid, ref.EntityID, opts)
	case model.EntityTypeDocument:
		return s.publishDocument(ctx, uid, ref.EntityID, opts)
	case model.EntityTypeResource:
		return s.publishResource(ctx, uid, ref.EntityID, opts)
	case model.EntityTypeCodeArtifact:
		return s.publishCodeArtifact(ctx, uid, ref.EntityID, opts)
	case model.EntityTypeSkillResponse:
		return s.publishSkillResponse(ctx, uid, ref.EntityID, opts)
	case model.EntityTypePage:
		return s.publishPage(ctx, uid, ref.EntityID, opts)
	case model.EntityTypeWorkflowApp:
		return s.publishWorkflowApp(ctx, uid, ref.EntityID, opts)
	}
	return nil, fmt.Errorf("%w: unsupported entity type %q", ErrParams, ref.EntityType)
}

// RefreshShare re-snapshots an existing share in place. Invoked by the
// background worker for queued refresh jobs.
func (s *ShareService) RefreshShare(ctx context.Context, shareID string) error {
	share, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("share %s: %w", shareID, ErrNotFound)
		}
		return err
	}

	_, err = s.processShare(ctx, share.UID, EntityRef{
		EntityID:   share.EntityID,
		EntityType: model.EntityType(share.EntityType),
	}, PublishOptions{
		ParentShareID:    share.ParentShareID,
		TemplateID:       share.TemplateID,
		AllowDuplication: share.AllowDuplication,
		Title:            share.Title,
	})
	return err
}

// ListShares lists a user's non-deleted shares.
func (s *ShareService) ListShares(ctx context.Context, uid string, filter store.ShareFilter) ([]*model.Share, error) {
	filter.UID = uid
	return s.store.ListShares(ctx, filter)
}

// GetShareData returns the public blob of a share, served from cache
// when possible.
func (s *ShareService) GetShareData(ctx context.Context, shareID string) ([]byte, error) {
	if s.cache != nil {
		var cached json.RawMessage
		if err := s.cache.Get(ctx, shareDataKey(shareID), &cached); err == nil {
			return cached, nil
		}
	}

	share, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("share %s: %w", shareID, ErrNotFound)
		}
		return nil, err
	}

	data, err := s.objects.Get(ctx, share.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("share %s: %w", shareID, ErrNotFound)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, shareDataKey(shareID), json.RawMessage(data), shareDataTTL); err != nil {
			logrus.Errorf("share %s: cache set: %v", shareID, err)
		}
	}
	return data, nil
}

// DeleteShare soft-deletes a share and every child share pointing at it,
// and force-removes their public storage objects.
func (s *ShareService) DeleteShare(ctx context.Context, uid, shareID string) error {
	if err := s.allow(ctx, uid, shareID); err != nil {
		return err
	}

	share, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("share %s: %w", shareID, ErrNotFound)
		}
		return err
	}
	if share.UID != uid {
		return fmt.Errorf("share %s: %w", shareID, ErrNotFound)
	}

	children, err := s.store.ListShares(ctx, store.ShareFilter{UID: uid, ParentShareID: shareID})
	if err != nil {
		return err
	}

	all := append([]*model.Share{share}, children...)
	shareIDs := make([]string, 0, len(all))
	for _, sh := range all {
		shareIDs = append(shareIDs, sh.ID)
		if sh.StorageKey != "" {
			if err := s.objects.Remove(ctx, sh.StorageKey); err != nil {
				logrus.Errorf("share %s: remove object %s: %v", sh.ID, sh.StorageKey, err)
			}
		}
		if err := s.objects.Remove(ctx, storage.ShareCoverKey(sh.ID)); err != nil {
			logrus.Debugf("share %s: remove cover: %v", sh.ID, err)
		}
		if s.cache != nil {
			if err := s.cache.Del(ctx, shareDataKey(sh.ID)); err != nil {
				logrus.Errorf("share %s: cache del: %v", sh.ID, err)
			}
		}

		// re-hosted media tracked against the share
		files, err := s.store.ListStaticFilesByEntity(ctx, sh.ID)
		if err != nil {
			logrus.Errorf("share %s: list media: %v", sh.ID, err)
			continue
		}
		for _, file := range files {
			if err := s.objects.Remove(ctx, file.StorageKey); err != nil {
				logrus.Errorf("share %s: remove media %s: %v", sh.ID, file.StorageKey, err)
			}
		}
		if len(files) > 0 {
			if err := s.store.DeleteStaticFilesByEntity(ctx, sh.ID); err != nil {
				logrus.Errorf("share %s: delete media records: %v", sh.ID, err)
			}
		}
	}

	return s.store.DeleteShares(ctx, shareIDs)
}

// ResyncUsage recounts a user's library entities and overwrites the
// stored usage counter.
func (s *ShareService) ResyncUsage(ctx context.Context, uid string) error {
	count, err := s.store.CountLibraryEntities(ctx, uid)
	if err != nil {
		return err
	}
	return s.store.SetQuotaUsed(ctx, uid, count)
}

// scheduleUsageResync hands the recount to the worker when a queue is
// configured and recounts inline otherwise. Usage tracking is advisory,
// so a failed resync is logged, not returned.
func (s *ShareService) scheduleUsageResync(ctx context.Context, uid string) {
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, queue.JobResyncUsage, map[string]string{"uid": uid})
		if err == nil {
			return
		}
		logrus.Errorf("uid %s: enqueue usage resync: %v", uid, err)
	}
	if err := s.ResyncUsage(ctx, uid); err != nil {
		logrus.Errorf("uid %s: resync usage: %v", uid, err)
	}
}

func (s *ShareService) allow(ctx context.Context, uid, key string) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "share:"+uid+":"+key)
	if err != nil {
		// a broken limiter backend must not take down share operations
		logrus.Errorf("ratelimit %s: %v", key, err)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: entity %s", ErrRateLimited, key)
	}
	return nil
}

func shareDataKey(shareID string) string {
	return "share:data:" + shareID
}

func (s *ShareService) decodeCanvasState(canvas *model.Canvas) (*model.GraphSnapshot, error) {
	data, err := compress.ByName(canvas.Compression).Decode([]byte(canvas.State))
	if err != nil {
		return nil, fmt.Errorf("canvas %s: decode state: %w", canvas.ID, err)
	}

	snapshot := &model.GraphSnapshot{}
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("canvas %s: parse state: %w", canvas.ID, err)
	}
	return snapshot, nil
}

// compressString encodes entity content for storage at rest with the
// service's configured codec.
func compressString(s, name string) (string, error) {
	encoded, err := compress.ByName(name).Encode([]byte(s))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (s *ShareService) encodeCanvasState(snapshot *model.GraphSnapshot) (string, string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", "", err
	}
	encoded, err := compress.ByName(s.compression).Encode(data)
	if err != nil {
		return "", "", err
	}
	return string(encoded), s.compression, nil
}
