package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emrgen/canvas/internal/ids"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/ratelimit"
	"github.com/emrgen/canvas/internal/search"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
	"github.com/emrgen/canvas/internal/tester"
	"github.com/stretchr/testify/assert"
)

// recordingIndex captures index upserts for assertions.
type recordingIndex struct {
	mu   sync.Mutex
	docs []search.Document
}

func (r *recordingIndex) UpsertDocument(ctx context.Context, doc search.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func (r *recordingIndex) DeleteDocument(ctx context.Context, id string) error { return nil }

type testEnv struct {
	shares  *ShareService
	store   store.Store
	objects *storage.MemoryStore
	queue   *queue.MemoryQueue
}

func newTestEnv(t *testing.T, withQueue bool) *testEnv {
	tester.RemoveDBFile()
	tester.Setup()

	env := &testEnv{
		store:   store.NewGormStore(tester.TestDB()),
		objects: storage.NewMemoryStore(),
	}

	deps := Deps{
		Store:   env.store,
		Objects: env.objects,
	}
	if withQueue {
		env.queue = queue.NewMemoryQueue()
		deps.Queue = env.queue
	}

	env.shares = NewShareService(deps)
	return env
}

func (e *testEnv) seedDocument(t *testing.T, uid, content string) *model.Document {
	doc := &model.Document{
		ID:      ids.Alloc(model.EntityTypeDocument),
		UID:     uid,
		Title:   "doc title",
		Content: content,
	}
	assert.NoError(t, e.store.CreateDocument(context.TODO(), doc))
	return doc
}

func TestCreateShare_Document(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "hello world")

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)
	assert.NotNil(t, share)

	assert.True(t, strings.HasPrefix(share.ID, "doc-"))
	assert.Equal(t, doc.ID, share.EntityID)
	assert.Equal(t, storage.ShareKey(share.ID), share.StorageKey)
	assert.True(t, share.AllowDuplication)

	data, err := env.objects.Get(context.TODO(), share.StorageKey)
	assert.NoError(t, err)

	payload := documentPayload{}
	assert.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, doc.ID, payload.DocumentID)
	assert.Equal(t, "hello world", payload.Content)
}

func TestCreateShare_Idempotent(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "content v1")

	ref := EntityRef{EntityID: doc.ID, EntityType: model.EntityTypeDocument}

	first, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)

	second, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	shares, err := env.shares.ListShares(context.TODO(), "uid-1", store.ShareFilter{})
	assert.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestCreateShare_UpdatesFlags(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "content")

	ref := EntityRef{EntityID: doc.ID, EntityType: model.EntityTypeDocument}

	first, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{AllowDuplication: false})
	assert.NoError(t, err)
	assert.False(t, first.AllowDuplication)

	second, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{AllowDuplication: true, Title: "renamed"})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.AllowDuplication)
	assert.Equal(t, "renamed", second.Title)

	stored, err := env.store.GetShareByID(context.TODO(), first.ID)
	assert.NoError(t, err)
	assert.True(t, stored.AllowDuplication)
}

func TestCreateShare_QueuedRefresh(t *testing.T) {
	env := newTestEnv(t, true)
	doc := env.seedDocument(t, "uid-1", "content")

	ref := EntityRef{EntityID: doc.ID, EntityType: model.EntityTypeDocument}

	first, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)
	assert.Empty(t, env.queue.Messages())

	second, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	msgs := env.queue.Messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, queue.JobRefreshShare, msgs[0].Name)

	var payload map[string]string
	assert.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, first.ID, payload["shareId"])
}

func TestCreateShare_IndexedWithTimestamps(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "findable")

	index := &recordingIndex{}
	indexed := NewShareService(Deps{
		Store:   env.store,
		Objects: env.objects,
		Index:   index,
	})

	_, err := indexed.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{})
	assert.NoError(t, err)

	assert.Len(t, index.docs, 1)
	assert.Equal(t, doc.ID, index.docs[0].ID)
	assert.False(t, index.docs[0].CreatedAt.IsZero())
	assert.False(t, index.docs[0].UpdatedAt.IsZero())
}

func TestCreateShare_UnknownType(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   "x-123",
		EntityType: model.EntityType("project"),
	}, PublishOptions{})
	assert.ErrorIs(t, err, ErrParams)
}

func TestCreateShare_MissingEntity(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   ids.Alloc(model.EntityTypeDocument),
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedCanvas(t *testing.T, env *testEnv, uid string, snapshot *model.GraphSnapshot) *model.Canvas {
	state, err := json.Marshal(snapshot)
	assert.NoError(t, err)

	canvas := &model.Canvas{
		ID:    ids.Alloc(model.EntityTypeCanvas),
		UID:   uid,
		Title: snapshot.Title,
		State: string(state),
	}
	assert.NoError(t, env.store.CreateCanvas(context.TODO(), canvas))
	return canvas
}

func TestPublishCanvas(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	doc := env.seedDocument(t, uid, "doc body")

	response := &model.SkillResponse{
		ID:    ids.Alloc(model.EntityTypeSkillResponse),
		UID:   uid,
		Title: "answer",
		Query: "summarize",
	}
	assert.NoError(t, env.store.CreateSkillResponse(context.TODO(), response))

	assert.NoError(t, env.objects.Put(context.TODO(), "uploads/pic-1", []byte("png-bytes"), storage.VisibilityPrivate))

	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{
		Title: "my canvas",
		Nodes: []model.Node{
			{
				ID:   "node-1",
				Type: model.NodeTypeDocument,
				Data: model.NodeData{
					EntityID: doc.ID,
					Title:    "doc title",
					Metadata: map[string]any{"status": "finish", "apiKey": "secret"},
				},
			},
			{
				ID:   "node-2",
				Type: model.NodeTypeSkillResponse,
				Data: model.NodeData{
					EntityID: response.ID,
					Metadata: map[string]any{"modelName": "m1", "prompt": "private"},
				},
			},
			{
				ID:   "node-3",
				Type: model.NodeTypeImage,
				Data: model.NodeData{
					Metadata: map[string]any{"storageKey": "uploads/pic-1", "style": "wide"},
				},
			},
		},
		Edges: []model.Edge{{ID: "edge-1", Source: "node-2", Target: "node-1"}},
		Files: []model.FileRef{{
			Name:       "notes.txt",
			Type:       "text/plain",
			Size:       12,
			StorageKey: "uploads/notes",
			Scope:      "internal",
		}},
	})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(share.ID, "can-"))

	children, err := env.shares.ListShares(context.TODO(), uid, store.ShareFilter{ParentShareID: share.ID})
	assert.NoError(t, err)
	assert.Len(t, children, 2)
	for _, child := range children {
		assert.True(t, child.AllowDuplication)
		assert.True(t, env.objects.Exists(child.StorageKey))
	}

	data, err := env.objects.Get(context.TODO(), share.StorageKey)
	assert.NoError(t, err)

	public := model.GraphSnapshot{}
	assert.NoError(t, json.Unmarshal(data, &public))
	assert.Equal(t, "my canvas", public.Title)
	assert.Len(t, public.Nodes, 3)

	byID := map[string]model.Node{}
	for _, node := range public.Nodes {
		byID[node.ID] = node
	}

	assert.Equal(t, "finish", byID["node-1"].Data.Metadata["status"])
	assert.NotContains(t, byID["node-1"].Data.Metadata, "apiKey")
	assert.NotEmpty(t, byID["node-1"].Data.Metadata["shareId"])

	assert.Equal(t, "m1", byID["node-2"].Data.Metadata["modelName"])
	assert.NotContains(t, byID["node-2"].Data.Metadata, "prompt")

	assert.NotContains(t, byID["node-3"].Data.Metadata, "storageKey")
	assert.Equal(t, "memory://"+storage.ShareMediaKey(share.ID, "node-3"), byID["node-3"].Data.Metadata["imageUrl"])
	assert.True(t, env.objects.Exists(storage.ShareMediaKey(share.ID, "node-3")))

	assert.Len(t, public.Files, 1)
	assert.Equal(t, "notes.txt", public.Files[0].Name)
	assert.Empty(t, public.Files[0].StorageKey)
	assert.Empty(t, public.Files[0].Scope)
}

func TestPublishCanvas_SharedEntityPublishedOnce(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	doc := env.seedDocument(t, uid, "quoted everywhere")

	nodes := make([]model.Node, 0, 6)
	for _, id := range []string{"node-1", "node-2", "node-3", "node-4", "node-5", "node-6"} {
		nodes = append(nodes, model.Node{
			ID:   id,
			Type: model.NodeTypeDocument,
			Data: model.NodeData{EntityID: doc.ID},
		})
	}
	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{Title: "mirrors", Nodes: nodes})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{})
	assert.NoError(t, err)

	children, err := env.shares.ListShares(context.TODO(), uid, store.ShareFilter{EntityID: doc.ID})
	assert.NoError(t, err)
	assert.Len(t, children, 1)

	data, err := env.objects.Get(context.TODO(), share.StorageKey)
	assert.NoError(t, err)

	public := model.GraphSnapshot{}
	assert.NoError(t, json.Unmarshal(data, &public))
	assert.Len(t, public.Nodes, 6)
	for _, node := range public.Nodes {
		assert.Equal(t, children[0].ID, node.Data.Metadata["shareId"])
	}
}

func TestPublishCanvas_MissingNodeSkipped(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	doc := env.seedDocument(t, uid, "doc body")

	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{
		Title: "partial",
		Nodes: []model.Node{
			{ID: "node-1", Type: model.NodeTypeDocument, Data: model.NodeData{EntityID: doc.ID}},
			{ID: "node-2", Type: model.NodeTypeDocument, Data: model.NodeData{EntityID: ids.Alloc(model.EntityTypeDocument)}},
		},
	})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{})
	assert.NoError(t, err)

	data, err := env.objects.Get(context.TODO(), share.StorageKey)
	assert.NoError(t, err)

	public := model.GraphSnapshot{}
	assert.NoError(t, json.Unmarshal(data, &public))
	assert.Len(t, public.Nodes, 2)

	byID := map[string]model.Node{}
	for _, node := range public.Nodes {
		byID[node.ID] = node
	}
	assert.NotEmpty(t, byID["node-1"].Data.Metadata["shareId"])
	assert.NotContains(t, byID["node-2"].Data.Metadata, "shareId")
}

func TestGetShareData(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "readable")

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{})
	assert.NoError(t, err)

	data, err := env.shares.GetShareData(context.TODO(), share.ID)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "readable")

	_, err = env.shares.GetShareData(context.TODO(), ids.Alloc(model.EntityTypeDocument))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateShare_RateLimited(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "content")

	redisCache := tester.Redis(t)
	limited := NewShareService(Deps{
		Store:   env.store,
		Objects: env.objects,
		Limiter: ratelimit.NewLimiter(redisCache.Client(), 2, time.Minute),
	})

	ref := EntityRef{EntityID: doc.ID, EntityType: model.EntityTypeDocument}
	for i := 0; i < 2; i++ {
		_, err := limited.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
		assert.NoError(t, err)
	}

	_, err := limited.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGetShareData_Cached(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "cache me")

	cached := NewShareService(Deps{
		Store:   env.store,
		Objects: env.objects,
		Cache:   tester.Redis(t),
	})

	share, err := cached.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{})
	assert.NoError(t, err)

	first, err := cached.GetShareData(context.TODO(), share.ID)
	assert.NoError(t, err)

	// a second read is served from cache even after the object is gone
	assert.NoError(t, env.objects.Remove(context.TODO(), share.StorageKey))

	second, err := cached.GetShareData(context.TODO(), share.ID)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeleteShare_Cascade(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	doc := env.seedDocument(t, uid, "doc body")
	artifact := &model.CodeArtifact{
		ID:      ids.Alloc(model.EntityTypeCodeArtifact),
		UID:     uid,
		Title:   "snippet",
		Content: "package main",
	}
	assert.NoError(t, env.store.CreateCodeArtifact(context.TODO(), artifact))
	assert.NoError(t, env.objects.Put(context.TODO(), "uploads/pic-2", []byte("png"), storage.VisibilityPrivate))

	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{
		Title: "to delete",
		Nodes: []model.Node{
			{ID: "node-1", Type: model.NodeTypeDocument, Data: model.NodeData{EntityID: doc.ID}},
			{ID: "node-2", Type: model.NodeTypeImage, Data: model.NodeData{
				Metadata: map[string]any{"storageKey": "uploads/pic-2"},
			}},
			{ID: "node-3", Type: model.NodeTypeCodeArtifact, Data: model.NodeData{EntityID: artifact.ID}},
		},
	})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{})
	assert.NoError(t, err)

	children, err := env.shares.ListShares(context.TODO(), uid, store.ShareFilter{ParentShareID: share.ID})
	assert.NoError(t, err)
	assert.Len(t, children, 2)

	assert.NoError(t, env.shares.DeleteShare(context.TODO(), uid, share.ID))

	remaining, err := env.shares.ListShares(context.TODO(), uid, store.ShareFilter{})
	assert.NoError(t, err)
	assert.Empty(t, remaining)

	assert.False(t, env.objects.Exists(share.StorageKey))
	for _, child := range children {
		assert.False(t, env.objects.Exists(child.StorageKey))
	}
	assert.False(t, env.objects.Exists(storage.ShareMediaKey(share.ID, "node-2")))
	// the private original is untouched
	assert.True(t, env.objects.Exists("uploads/pic-2"))

	_, err = env.shares.GetShareData(context.TODO(), share.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateShare_AfterDelete(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "republished")

	ref := EntityRef{EntityID: doc.ID, EntityType: model.EntityTypeDocument}

	first, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)
	assert.NoError(t, env.shares.DeleteShare(context.TODO(), "uid-1", first.ID))

	// the soft-deleted row stays behind; a fresh publish must not trip
	// the (uid, entity_id, entity_type) index
	second, err := env.shares.CreateShare(context.TODO(), "uid-1", ref, PublishOptions{})
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	live, err := env.shares.ListShares(context.TODO(), "uid-1", store.ShareFilter{EntityID: doc.ID})
	assert.NoError(t, err)
	assert.Len(t, live, 1)
	assert.Equal(t, second.ID, live[0].ID)
}

func TestDeleteShare_WrongOwner(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "doc body")

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{})
	assert.NoError(t, err)

	err = env.shares.DeleteShare(context.TODO(), "uid-2", share.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, env.objects.Exists(share.StorageKey))
}
