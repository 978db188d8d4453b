package jobs

import (
	"context"
	"testing"

	"github.com/emrgen/canvas/internal/ids"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/service"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
	"github.com/emrgen/canvas/internal/tester"
	"github.com/stretchr/testify/assert"
)

func TestWorker_HandleRefreshShare(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := store.NewGormStore(tester.TestDB())
	objects := storage.NewMemoryStore()
	shares := service.NewShareService(service.Deps{Store: st, Objects: objects})

	doc := &model.Document{
		ID:      ids.Alloc(model.EntityTypeDocument),
		UID:     "uid-1",
		Title:   "doc",
		Content: "first version",
	}
	assert.NoError(t, st.CreateDocument(context.TODO(), doc))

	share, err := shares.CreateShare(context.TODO(), "uid-1", service.EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, service.PublishOptions{})
	assert.NoError(t, err)

	assert.NoError(t, tester.TestDB().Model(&model.Document{}).
		Where("id = ?", doc.ID).Update("content", "second version").Error)

	mq := queue.NewMemoryQueue()
	assert.NoError(t, mq.Enqueue(context.TODO(), queue.JobRefreshShare, map[string]string{"shareId": share.ID}))

	worker := NewWorker(nil, shares)
	for _, msg := range mq.Messages() {
		assert.NoError(t, worker.Handle(context.TODO(), msg))
	}

	data, err := shares.GetShareData(context.TODO(), share.ID)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "second version")
	assert.NotContains(t, string(data), "first version")
}

func TestWorker_HandleResyncUsage(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := store.NewGormStore(tester.TestDB())
	shares := service.NewShareService(service.Deps{Store: st, Objects: storage.NewMemoryStore()})

	for _, content := range []string{"a", "b"} {
		doc := &model.Document{
			ID:      ids.Alloc(model.EntityTypeDocument),
			UID:     "uid-1",
			Title:   "doc",
			Content: content,
		}
		assert.NoError(t, st.CreateDocument(context.TODO(), doc))
	}
	assert.NoError(t, tester.TestDB().Create(&model.StorageQuota{
		UID:            "uid-1",
		FileCountQuota: 10,
	}).Error)

	mq := queue.NewMemoryQueue()
	assert.NoError(t, mq.Enqueue(context.TODO(), queue.JobResyncUsage, map[string]string{"uid": "uid-1"}))

	worker := NewWorker(nil, shares)
	for _, msg := range mq.Messages() {
		assert.NoError(t, worker.Handle(context.TODO(), msg))
	}

	quota, err := st.GetQuota(context.TODO(), "uid-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), quota.FileCountUsed)
}

func TestWorker_HandleUnknownJob(t *testing.T) {
	worker := NewWorker(nil, nil)
	err := worker.Handle(context.TODO(), queue.Message{Name: "share:compact"})
	assert.Error(t, err)
}
