package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/emrgen/canvas/internal/ids"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/tester"
	"github.com/stretchr/testify/assert"
)

func TestDuplicateShare_Document(t *testing.T) {
	env := newTestEnv(t, false)

	// self-reference inside the content must follow the new identifier
	docID := ids.Alloc(model.EntityTypeDocument)
	doc := &model.Document{
		ID:      docID,
		UID:     "uid-1",
		Title:   "doc title",
		Content: "see also " + docID,
	}
	assert.NoError(t, env.store.CreateDocument(context.TODO(), doc))

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	result, err := env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{ProjectID: "proj-9"})
	assert.NoError(t, err)
	assert.NotEqual(t, doc.ID, result.EntityID)
	assert.True(t, strings.HasPrefix(result.EntityID, "doc-"))

	copied, err := env.store.GetDocument(context.TODO(), result.EntityID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", copied.UID)
	assert.Equal(t, "proj-9", copied.ProjectID)
	assert.Equal(t, "see also "+result.EntityID, copied.Content)
	assert.NotContains(t, copied.Content, doc.ID)

	records, err := env.shares.ListDuplicates(context.TODO(), "uid-2")
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, doc.ID, records[0].SourceID)
	assert.Equal(t, result.EntityID, records[0].TargetID)
	assert.Equal(t, model.DuplicateStatusFinish, records[0].Status)
}

func TestDuplicateShare_NotAllowed(t *testing.T) {
	env := newTestEnv(t, false)
	doc := env.seedDocument(t, "uid-1", "private stuff")

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{AllowDuplication: false})
	assert.NoError(t, err)

	_, err = env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{})
	assert.ErrorIs(t, err, ErrDuplicationNotAllowed)

	// the owner can always copy their own share
	result, err := env.shares.DuplicateShare(context.TODO(), "uid-1", share.ID, DuplicateTarget{})
	assert.NoError(t, err)
	assert.NotEqual(t, doc.ID, result.EntityID)
}

func TestDuplicateShare_MalformedID(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.shares.DuplicateShare(context.TODO(), "uid-2", "nonsense", DuplicateTarget{})
	assert.ErrorIs(t, err, ErrParams)
}

func TestDuplicateCanvas_EndToEnd(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	docID := ids.Alloc(model.EntityTypeDocument)
	responseID := ids.Alloc(model.EntityTypeSkillResponse)

	contextItems, err := json.Marshal([]ContextItem{{EntityID: responseID, Type: "skillResponse"}})
	assert.NoError(t, err)

	doc := &model.Document{
		ID:           docID,
		UID:          uid,
		Title:        "notes",
		Content:      "summary of " + responseID,
		ContextItems: string(contextItems),
	}
	assert.NoError(t, env.store.CreateDocument(context.TODO(), doc))

	response := &model.SkillResponse{
		ID:      responseID,
		UID:     uid,
		Title:   "answer",
		Query:   "explain @{type=document,id=" + docID + ",name=notes}",
		Context: `{"documents":["` + docID + `"]}`,
		History: `[{"resultId":"` + responseID + `"}]`,
		Version: 3,
	}
	assert.NoError(t, env.store.CreateSkillResponse(context.TODO(), response))
	assert.NoError(t, env.store.CreateSkillSteps(context.TODO(), []*model.SkillStep{
		{ResultID: responseID, Name: "answer", Content: "based on " + docID, Version: 2},
	}))

	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{
		Title: "research",
		Nodes: []model.Node{
			{ID: "node-1", Type: model.NodeTypeDocument, Data: model.NodeData{EntityID: docID}},
			{ID: "node-2", Type: model.NodeTypeSkillResponse, Data: model.NodeData{EntityID: responseID}},
		},
		Edges: []model.Edge{{ID: "edge-1", Source: "node-2", Target: "node-1"}},
	})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	result, err := env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{ProjectID: "proj-2"})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.EntityID, "can-"))
	assert.Len(t, result.Outcomes, 2)
	for _, outcome := range result.Outcomes {
		assert.Equal(t, OutcomeOK, outcome.Status)
	}

	copied, err := env.store.GetCanvas(context.TODO(), result.EntityID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", copied.UID)
	assert.Equal(t, "proj-2", copied.ProjectID)

	// the new snapshot must not reference any source entity
	assert.NotContains(t, copied.State, docID)
	assert.NotContains(t, copied.State, responseID)
	assert.NotContains(t, copied.State, canvas.ID)
	assert.NotContains(t, copied.State, "shareId")

	snapshot := model.GraphSnapshot{}
	assert.NoError(t, json.Unmarshal([]byte(copied.State), &snapshot))
	assert.Len(t, snapshot.Nodes, 2)

	var newDocID, newResponseID string
	for _, node := range snapshot.Nodes {
		switch node.Type {
		case model.NodeTypeDocument:
			newDocID = node.Data.EntityID
		case model.NodeTypeSkillResponse:
			newResponseID = node.Data.EntityID
		}
	}
	assert.True(t, strings.HasPrefix(newDocID, "doc-"))
	assert.True(t, strings.HasPrefix(newResponseID, "sre-"))

	newDoc, err := env.store.GetDocument(context.TODO(), newDocID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", newDoc.UID)
	assert.Equal(t, "summary of "+newResponseID, newDoc.Content)
	assert.Contains(t, newDoc.ContextItems, newResponseID)
	assert.NotContains(t, newDoc.ContextItems, responseID)

	newResponse, err := env.store.GetSkillResponse(context.TODO(), newResponseID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", newResponse.UID)
	assert.Equal(t, responseID, newResponse.DuplicateFrom)
	assert.Equal(t, "explain @{type=document,id="+newDocID+",name=notes}", newResponse.Query)
	assert.Contains(t, newResponse.Context, newDocID)
	assert.NotContains(t, newResponse.Context, docID)
	assert.Contains(t, newResponse.History, newResponseID)

	steps, err := env.store.ListSkillSteps(context.TODO(), newResponseID)
	assert.NoError(t, err)
	assert.Len(t, steps, 1)
	assert.Equal(t, 0, steps[0].Version)
	assert.Equal(t, "based on "+newDocID, steps[0].Content)

	records, err := env.shares.ListDuplicates(context.TODO(), "uid-2")
	assert.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDuplicateCanvas_QuotaGate(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	doc := env.seedDocument(t, uid, "doc body")
	resource := &model.Resource{
		ID:      ids.Alloc(model.EntityTypeResource),
		UID:     uid,
		Title:   "page",
		Content: "resource body",
	}
	assert.NoError(t, env.store.CreateResource(context.TODO(), resource))

	canvas := seedCanvas(t, env, uid, &model.GraphSnapshot{
		Title: "heavy",
		Nodes: []model.Node{
			{ID: "node-1", Type: model.NodeTypeDocument, Data: model.NodeData{EntityID: doc.ID}},
			{ID: "node-2", Type: model.NodeTypeResource, Data: model.NodeData{EntityID: resource.ID}},
		},
	})

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   canvas.ID,
		EntityType: model.EntityTypeCanvas,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	assert.NoError(t, tester.TestDB().Create(&model.StorageQuota{
		UID:            "uid-2",
		FileCountQuota: 1,
		FileCountUsed:  0,
	}).Error)

	objectsBefore := env.objects.Len()

	_, err = env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// nothing may have been written
	assert.Equal(t, objectsBefore, env.objects.Len())

	records, err := env.shares.ListDuplicates(context.TODO(), "uid-2")
	assert.NoError(t, err)
	assert.Empty(t, records)

	var count int64
	assert.NoError(t, tester.TestDB().Model(&model.Document{}).Where("uid = ?", "uid-2").Count(&count).Error)
	assert.Zero(t, count)
	assert.NoError(t, tester.TestDB().Model(&model.Canvas{}).Where("uid = ?", "uid-2").Count(&count).Error)
	assert.Zero(t, count)
}

func TestDuplicateCanvas_SkippedNodeKeepsSiblings(t *testing.T) {
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
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	result, err := env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{})
	assert.NoError(t, err)

	var ok, skipped int
	for _, outcome := range result.Outcomes {
		switch outcome.Status {
		case OutcomeOK:
			ok++
		case OutcomeSkipped:
			skipped++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, skipped)

	copied, err := env.store.GetCanvas(context.TODO(), result.EntityID)
	assert.NoError(t, err)
	assert.NotContains(t, copied.State, doc.ID)
}

func TestDuplicateShare_Page(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	docID := ids.Alloc(model.EntityTypeDocument)
	state, err := json.Marshal(map[string]any{
		"title":   "weekly report",
		"nodeIds": []string{docID},
	})
	assert.NoError(t, err)

	page := &model.Page{
		ID:    ids.Alloc(model.EntityTypePage),
		UID:   uid,
		Title: "weekly report",
		State: state,
	}
	assert.NoError(t, env.store.CreatePage(context.TODO(), page))

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   page.ID,
		EntityType: model.EntityTypePage,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(share.ID, "pag-"))

	result, err := env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{ProjectID: "proj-3"})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.EntityID, "pag-"))

	copied, err := env.store.GetPage(context.TODO(), result.EntityID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", copied.UID)
	assert.Equal(t, "proj-3", copied.ProjectID)
	assert.Equal(t, "weekly report", copied.Title)
	// the page was duplicated standalone, so the node reference stays
	assert.Contains(t, string(copied.State), docID)
}

func TestDuplicateShare_WorkflowApp(t *testing.T) {
	env := newTestEnv(t, false)
	uid := "uid-1"

	app := &model.WorkflowApp{
		ID:        ids.Alloc(model.EntityTypeWorkflowApp),
		UID:       uid,
		Title:     "report generator",
		Query:     "generate the report",
		Variables: `[{"name":"topic","value":"golang"}]`,
	}
	assert.NoError(t, env.store.CreateWorkflowApp(context.TODO(), app))

	share, err := env.shares.CreateShare(context.TODO(), uid, EntityRef{
		EntityID:   app.ID,
		EntityType: model.EntityTypeWorkflowApp,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	result, err := env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{CanvasID: "can-target"})
	assert.NoError(t, err)

	copied, err := env.store.GetWorkflowApp(context.TODO(), result.EntityID)
	assert.NoError(t, err)
	assert.Equal(t, "uid-2", copied.UID)
	assert.Equal(t, "can-target", copied.CanvasID)
	assert.Equal(t, "generate the report", copied.Query)
	assert.JSONEq(t, app.Variables, copied.Variables)
}

func TestDuplicateShare_QueuedUsageResync(t *testing.T) {
	env := newTestEnv(t, true)
	doc := env.seedDocument(t, "uid-1", "counted")

	share, err := env.shares.CreateShare(context.TODO(), "uid-1", EntityRef{
		EntityID:   doc.ID,
		EntityType: model.EntityTypeDocument,
	}, PublishOptions{AllowDuplication: true})
	assert.NoError(t, err)

	_, err = env.shares.DuplicateShare(context.TODO(), "uid-2", share.ID, DuplicateTarget{})
	assert.NoError(t, err)

	var resyncs int
	for _, msg := range env.queue.Messages() {
		if msg.Name != queue.JobResyncUsage {
			continue
		}
		resyncs++
		var payload map[string]string
		assert.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "uid-2", payload["uid"])
	}
	assert.Equal(t, 1, resyncs)
}

func TestResyncUsage(t *testing.T) {
	env := newTestEnv(t, false)

	env.seedDocument(t, "uid-1", "a")
	env.seedDocument(t, "uid-1", "b")

	assert.NoError(t, tester.TestDB().Create(&model.StorageQuota{
		UID:            "uid-1",
		FileCountQuota: 10,
		FileCountUsed:  0,
	}).Error)

	assert.NoError(t, env.shares.ResyncUsage(context.TODO(), "uid-1"))

	quota, err := env.store.GetQuota(context.TODO(), "uid-1")
	assert.NoError(t, err)
	assert.NotNil(t, quota)
	assert.Equal(t, int64(2), quota.FileCountUsed)
}
