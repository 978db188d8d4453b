package service

import (
	"context"
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/canvas/internal/compress"
	"github.com/emrgen/canvas/internal/crdt"
	"github.com/emrgen/canvas/internal/ids"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/rewrite"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
	"github.com/emrgen/canvas/internal/toolset"
	"github.com/emrgen/canvas/internal/vector"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DuplicateResult reports what one duplication materialized.
type DuplicateResult struct {
	EntityID   string
	EntityType model.EntityType
	// Outcomes holds per-node results for canvas duplication; single
	// entity duplication reports exactly one outcome.
	Outcomes []Outcome
}

// DuplicateShare copies a published share into the caller's own private
// graph. Every embedded reference to a source entity is rewritten to the
// freshly allocated identifiers; nothing in the copy points back into the
// publisher's private data. No row or object is written until the quota
// gate has passed.
func (s *ShareService) DuplicateShare(ctx context.Context, uid, shareID string, target DuplicateTarget) (*DuplicateResult, error) {
	if _, ok := ids.TypeFromID(shareID); !ok {
		return nil, fmt.Errorf("%w: malformed share id %q", ErrParams, shareID)
	}
	if err := s.allow(ctx, uid, shareID); err != nil {
		return nil, err
	}

	share, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("share %s: %w", shareID, ErrNotFound)
		}
		return nil, err
	}
	if !share.AllowDuplication && share.UID != uid {
		return nil, fmt.Errorf("share %s: %w", shareID, ErrDuplicationNotAllowed)
	}

	entityType := model.EntityType(share.EntityType)
	if entityType == model.EntityTypeCanvas {
		return s.duplicateCanvas(ctx, uid, share, target)
	}
	return s.duplicateEntity(ctx, uid, share, target)
}

// ListDuplicates returns the caller's duplication ledger, newest first.
func (s *ShareService) ListDuplicates(ctx context.Context, uid string) ([]*model.DuplicateRecord, error) {
	return s.store.ListDuplicateRecords(ctx, uid)
}

// duplicateEntity copies one non-canvas share. The remap table contains
// the single source entity; references to entities outside the share are
// left untouched.
func (s *ShareService) duplicateEntity(ctx context.Context, uid string, share *model.Share, target DuplicateTarget) (*DuplicateResult, error) {
	entityType := model.EntityType(share.EntityType)

	var need int64
	if entityType.IsLibrary() {
		need = 1
	}
	if err := s.checkQuota(ctx, uid, need); err != nil {
		return nil, err
	}

	data, err := s.objects.Get(ctx, share.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("share %s: %w", share.ID, ErrNotFound)
	}

	newID := target.PreallocatedID
	if newID == "" {
		newID = ids.Alloc(entityType)
	}
	remap := rewrite.RemapTable{share.EntityID: newID}

	ttable := toolset.RemapTable{}
	if entityType == model.EntityTypeSkillResponse {
		ttable = s.importToolsets(ctx, uid, [][]byte{data})
	}

	if err := s.duplicateOne(ctx, uid, share.ID, entityType, newID, data, target, remap, ttable); err != nil {
		return nil, err
	}

	if need > 0 {
		s.scheduleUsageResync(ctx, uid)
	}

	return &DuplicateResult{
		EntityID:   newID,
		EntityType: entityType,
		Outcomes: []Outcome{{
			EntityID:   newID,
			EntityType: entityType,
			Status:     OutcomeOK,
		}},
	}, nil
}

// canvasDupPlan is the fully preallocated identifier space for one canvas
// duplication. The tables are built before any write and only read during
// the parallel copy phase.
type canvasDupPlan struct {
	newCanvasID string
	remap       rewrite.RemapTable
	ttable      toolset.RemapTable
	// shareIDs maps source entity ID to the child share holding its blob.
	shareIDs map[string]string
}

// duplicateCanvas copies a published graph: validate, preallocate the
// whole identifier space, copy nodes in parallel, reassemble the snapshot
// through the remap table, then commit the new canvas. Per-node failures
// degrade to skipped outcomes; identifiers of skipped entities are removed
// from the table before reassembly so the snapshot never references a row
// that was not created.
func (s *ShareService) duplicateCanvas(ctx context.Context, uid string, share *model.Share, target DuplicateTarget) (*DuplicateResult, error) {
	data, err := s.objects.Get(ctx, share.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("share %s: %w", share.ID, ErrNotFound)
	}
	snapshot := &model.GraphSnapshot{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("share %s: parse snapshot: %w", share.ID, err)
	}

	var need int64
	counted := map[string]bool{}
	for _, node := range snapshot.Nodes {
		if t, ok := entityTypeForNode(node.Type); ok && t.IsLibrary() && node.Data.EntityID != "" && !counted[node.Data.EntityID] {
			counted[node.Data.EntityID] = true
			need++
		}
	}
	if err := s.checkQuota(ctx, uid, need); err != nil {
		return nil, err
	}

	plan, err := s.preallocate(ctx, uid, share, snapshot, target)
	if err != nil {
		return nil, err
	}

	report := NewReport()

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(duplicateNodeConcurrency)
	for i := range snapshot.Nodes {
		node := snapshot.Nodes[i]
		entityType, ok := entityTypeForNode(node.Type)
		if !ok || node.Data.EntityID == "" {
			continue
		}
		group.Go(func() error {
			oldID := node.Data.EntityID
			childShareID := plan.shareIDs[oldID]
			if childShareID == "" {
				report.AddSkipped(node.ID, oldID, entityType, "no child share")
				return nil
			}
			blob, err := s.objects.Get(gctx, storage.ShareKey(childShareID))
			if err != nil {
				report.AddSkipped(node.ID, oldID, entityType, "missing payload: "+err.Error())
				return nil
			}
			nodeTarget := DuplicateTarget{ProjectID: target.ProjectID, CanvasID: plan.newCanvasID}
			if err := s.duplicateOne(gctx, uid, childShareID, entityType, plan.remap[oldID], blob, nodeTarget, plan.remap, plan.ttable); err != nil {
				logrus.Errorf("share %s: duplicate node %s: %v", share.ID, node.ID, err)
				report.AddSkipped(node.ID, oldID, entityType, err.Error())
				return nil
			}
			report.AddOK(node.ID, oldID, entityType)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Skipped entities keep their source identifiers out of the new
	// graph by being dropped from the table before reassembly.
	for _, skipped := range report.Skipped() {
		delete(plan.remap, skipped.EntityID)
	}

	rewritten := &model.GraphSnapshot{}
	if err := rewrite.Struct(snapshot, plan.remap, rewritten); err != nil {
		return nil, fmt.Errorf("share %s: rewrite snapshot: %w", share.ID, err)
	}
	for i := range rewritten.Nodes {
		delete(rewritten.Nodes[i].Data.Metadata, "shareId")
	}

	state, compression, err := s.encodeCanvasState(rewritten)
	if err != nil {
		return nil, fmt.Errorf("canvas %s: encode state: %w", plan.newCanvasID, err)
	}

	canvas := &model.Canvas{
		ID:          plan.newCanvasID,
		UID:         uid,
		ProjectID:   target.ProjectID,
		Title:       rewritten.Title,
		State:       state,
		Compression: compression,
	}
	if err := s.store.CreateCanvas(ctx, canvas); err != nil {
		return nil, err
	}
	if err := s.store.CreateDuplicateRecord(ctx, &model.DuplicateRecord{
		SourceID:   share.EntityID,
		TargetID:   plan.newCanvasID,
		EntityType: share.EntityType,
		UID:        uid,
		ShareID:    share.ID,
		Status:     model.DuplicateStatusFinish,
	}); err != nil {
		return nil, err
	}

	s.scheduleUsageResync(ctx, uid)

	return &DuplicateResult{
		EntityID:   plan.newCanvasID,
		EntityType: model.EntityTypeCanvas,
		Outcomes:   report.Outcomes(),
	}, nil
}

// preallocate builds the complete remap table for a canvas duplication:
// one fresh identifier per entity-backed node plus the canvas itself, and
// the toolset table imported from every skill response payload. Nothing is
// written here.
func (s *ShareService) preallocate(ctx context.Context, uid string, share *model.Share, snapshot *model.GraphSnapshot, target DuplicateTarget) (*canvasDupPlan, error) {
	newCanvasID := target.CanvasID
	if newCanvasID == "" {
		newCanvasID = ids.Alloc(model.EntityTypeCanvas)
	}

	plan := &canvasDupPlan{
		newCanvasID: newCanvasID,
		remap:       rewrite.RemapTable{share.EntityID: newCanvasID},
		ttable:      toolset.RemapTable{},
		shareIDs:    map[string]string{},
	}

	var skillBlobs [][]byte
	for _, node := range snapshot.Nodes {
		entityType, ok := entityTypeForNode(node.Type)
		if !ok || node.Data.EntityID == "" {
			continue
		}
		if _, dup := plan.remap[node.Data.EntityID]; dup {
			continue
		}
		plan.remap[node.Data.EntityID] = ids.Alloc(entityType)

		childShareID, _ := node.Data.Metadata["shareId"].(string)
		plan.shareIDs[node.Data.EntityID] = childShareID

		if entityType == model.EntityTypeSkillResponse && childShareID != "" {
			blob, err := s.objects.Get(ctx, storage.ShareKey(childShareID))
			if err != nil {
				logrus.Errorf("share %s: read skill payload %s: %v", share.ID, childShareID, err)
				continue
			}
			skillBlobs = append(skillBlobs, blob)
		}
	}

	plan.ttable = s.importToolsets(ctx, uid, skillBlobs)
	return plan, nil
}

// importToolsets collects the toolset bindings out of skill response
// payloads and imports them for the duplicating user. Import failure is
// not fatal: unresolved references pass through unchanged.
func (s *ShareService) importToolsets(ctx context.Context, uid string, blobs [][]byte) toolset.RemapTable {
	seen := mapset.NewSet[string]()
	var items []*toolset.Toolset
	for _, blob := range blobs {
		payload := skillResponsePayload{}
		if err := json.Unmarshal(blob, &payload); err != nil {
			continue
		}
		for _, item := range payload.Toolsets {
			if item == nil || item.ID == "" || !seen.Add(item.ID) {
				continue
			}
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return toolset.RemapTable{}
	}

	table, err := s.toolsets.ImportToolsets(ctx, uid, items)
	if err != nil {
		logrus.Errorf("uid %s: import toolsets: %v", uid, err)
		return toolset.RemapTable{}
	}
	return table
}

// checkQuota rejects a duplication that would push the user's library
// entity count past the quota. A missing row or a negative quota means
// unlimited.
func (s *ShareService) checkQuota(ctx context.Context, uid string, need int64) error {
	if need == 0 {
		return nil
	}
	quota, err := s.store.GetQuota(ctx, uid)
	if err != nil {
		return err
	}
	if quota == nil || quota.FileCountQuota < 0 {
		return nil
	}
	if quota.FileCountUsed+need > quota.FileCountQuota {
		return fmt.Errorf("%w: used %d of %d, need %d more",
			ErrQuotaExceeded, quota.FileCountUsed, quota.FileCountQuota, need)
	}
	return nil
}

// duplicateOne dispatches a single entity copy by type.
func (s *ShareService) duplicateOne(ctx context.Context, uid, shareID string, t model.EntityType, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable, ttable toolset.RemapTable) error {
	switch t {
	case model.EntityTypeDocument:
		return s.duplicateDocument(ctx, uid, shareID, newID, data, target, remap)
	case model.EntityTypeResource:
		return s.duplicateResource(ctx, uid, shareID, newID, data, target, remap)
	case model.EntityTypeCodeArtifact:
		return s.duplicateCodeArtifact(ctx, uid, shareID, newID, data, target, remap)
	case model.EntityTypeSkillResponse:
		return s.duplicateSkillResponse(ctx, uid, shareID, newID, data, target, remap, ttable)
	case model.EntityTypePage:
		return s.duplicatePage(ctx, uid, shareID, newID, data, target, remap)
	case model.EntityTypeWorkflowApp:
		return s.duplicateWorkflowApp(ctx, uid, shareID, newID, data, target, remap)
	}
	return fmt.Errorf("%w: unsupported entity type %q", ErrParams, t)
}

func (s *ShareService) recordDuplicate(ctx context.Context, uid, shareID, sourceID, targetID string, t model.EntityType) error {
	return s.store.CreateDuplicateRecord(ctx, &model.DuplicateRecord{
		SourceID:   sourceID,
		TargetID:   targetID,
		EntityType: string(t),
		UID:        uid,
		ShareID:    shareID,
		Status:     model.DuplicateStatusFinish,
	})
}

func (s *ShareService) restoreVector(ctx context.Context, uid string, data []byte, entityID string, t model.EntityType) {
	if len(data) == 0 {
		return
	}
	if err := s.vectors.Deserialize(ctx, uid, data, vector.Ref{EntityID: entityID, EntityType: t}); err != nil {
		logrus.Errorf("entity %s: restore vector: %v", entityID, err)
	}
}

func (s *ShareService) duplicateDocument(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable) error {
	payload := documentPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse document payload: %w", shareID, err)
	}
	sourceID := payload.DocumentID

	rewritten := documentPayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite document: %w", shareID, err)
	}

	content, err := compressString(rewritten.Content, s.compression)
	if err != nil {
		return err
	}

	var contextItems string
	if len(rewritten.ContextItems) > 0 {
		raw, err := json.Marshal(rewritten.ContextItems)
		if err != nil {
			return err
		}
		contextItems = string(raw)
	}

	doc := &model.Document{
		ID:           newID,
		UID:          uid,
		ProjectID:    target.ProjectID,
		CanvasID:     target.CanvasID,
		Title:        rewritten.Title,
		Content:      content,
		ContextItems: contextItems,
		Compression:  s.compression,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return err
	}

	s.restoreVector(ctx, uid, rewritten.Vector, newID, model.EntityTypeDocument)
	s.indexEntity(ctx, uid, newID, model.EntityTypeDocument, rewritten.Title, rewritten.Content, doc.CreatedAt, doc.UpdatedAt)
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypeDocument)
}

func (s *ShareService) duplicateResource(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable) error {
	payload := resourcePayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse resource payload: %w", shareID, err)
	}
	sourceID := payload.ResourceID

	rewritten := resourcePayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite resource: %w", shareID, err)
	}

	content, err := compressString(rewritten.Content, s.compression)
	if err != nil {
		return err
	}

	resource := &model.Resource{
		ID:           newID,
		UID:          uid,
		ProjectID:    target.ProjectID,
		CanvasID:     target.CanvasID,
		Title:        rewritten.Title,
		ResourceType: rewritten.ResourceType,
		Content:      content,
		Compression:  s.compression,
	}
	if err := s.store.CreateResource(ctx, resource); err != nil {
		return err
	}

	s.restoreVector(ctx, uid, rewritten.Vector, newID, model.EntityTypeResource)
	s.indexEntity(ctx, uid, newID, model.EntityTypeResource, rewritten.Title, rewritten.Content, resource.CreatedAt, resource.UpdatedAt)
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypeResource)
}

func (s *ShareService) duplicateCodeArtifact(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable) error {
	payload := codeArtifactPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse code artifact payload: %w", shareID, err)
	}
	sourceID := payload.ArtifactID

	rewritten := codeArtifactPayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite code artifact: %w", shareID, err)
	}

	content, err := compressString(rewritten.Content, s.compression)
	if err != nil {
		return err
	}

	artifact := &model.CodeArtifact{
		ID:           newID,
		UID:          uid,
		CanvasID:     target.CanvasID,
		Title:        rewritten.Title,
		ArtifactType: rewritten.ArtifactType,
		Language:     rewritten.Language,
		Content:      content,
		Compression:  s.compression,
	}
	if err := s.store.CreateCodeArtifact(ctx, artifact); err != nil {
		return err
	}

	s.indexEntity(ctx, uid, newID, model.EntityTypeCodeArtifact, rewritten.Title, rewritten.Content, artifact.CreatedAt, artifact.UpdatedAt)
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypeCodeArtifact)
}

func (s *ShareService) duplicateSkillResponse(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable, ttable toolset.RemapTable) error {
	payload := skillResponsePayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse skill response payload: %w", shareID, err)
	}
	sourceID := payload.ResultID

	// Toolsets are remapped wholesale through the import table before the
	// substring pass so their imported identifiers are never re-touched.
	payload.Toolsets = rewrite.Toolsets(payload.Toolsets, ttable)

	rewritten := skillResponsePayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite skill response: %w", shareID, err)
	}
	rewritten.Query = rewrite.Mentions(rewritten.Query, remap)

	var toolsets string
	if len(rewritten.Toolsets) > 0 {
		raw, err := json.Marshal(rewritten.Toolsets)
		if err != nil {
			return err
		}
		toolsets = string(raw)
	}

	response := &model.SkillResponse{
		ID:             newID,
		UID:            uid,
		CanvasID:       target.CanvasID,
		Title:          rewritten.Title,
		SkillName:      rewritten.SkillName,
		Query:          rewritten.Query,
		Context:        rewritten.Context,
		History:        rewritten.History,
		StructuredData: rewritten.StructuredData,
		Toolsets:       toolsets,
		Version:        rewritten.Version,
		DuplicateFrom:  sourceID,
	}
	if err := s.store.CreateSkillResponse(ctx, response); err != nil {
		return err
	}

	if len(rewritten.Steps) > 0 {
		steps := make([]*model.SkillStep, 0, len(rewritten.Steps))
		for _, step := range rewritten.Steps {
			steps = append(steps, &model.SkillStep{
				ResultID: newID,
				Name:     step.Name,
				Content:  step.Content,
				Version:  0,
			})
		}
		if err := s.store.CreateSkillSteps(ctx, steps); err != nil {
			return err
		}
	}

	s.restoreVector(ctx, uid, rewritten.Vector, newID, model.EntityTypeSkillResponse)
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypeSkillResponse)
}

func (s *ShareService) duplicatePage(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable) error {
	payload := pagePayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse page payload: %w", shareID, err)
	}
	sourceID := payload.PageID

	rewritten := pagePayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite page: %w", shareID, err)
	}

	state, err := s.pages.Encode(&crdt.PageState{
		Title:   rewritten.Title,
		NodeIDs: rewritten.NodeIDs,
		Config:  rewritten.Config,
	})
	if err != nil {
		return fmt.Errorf("page %s: encode draft: %w", newID, err)
	}
	encoded, err := compress.ByName(s.compression).Encode(state)
	if err != nil {
		return err
	}

	page := &model.Page{
		ID:          newID,
		UID:         uid,
		ProjectID:   target.ProjectID,
		Title:       rewritten.Title,
		State:       encoded,
		Compression: s.compression,
	}
	if err := s.store.CreatePage(ctx, page); err != nil {
		return err
	}
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypePage)
}

func (s *ShareService) duplicateWorkflowApp(ctx context.Context, uid, shareID, newID string, data []byte, target DuplicateTarget, remap rewrite.RemapTable) error {
	payload := workflowAppPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("share %s: parse workflow app payload: %w", shareID, err)
	}
	sourceID := payload.AppID

	rewritten := workflowAppPayload{}
	if err := rewrite.Struct(payload, remap, &rewritten); err != nil {
		return fmt.Errorf("share %s: rewrite workflow app: %w", shareID, err)
	}

	app := &model.WorkflowApp{
		ID:        newID,
		UID:       uid,
		CanvasID:  target.CanvasID,
		Title:     rewritten.Title,
		Query:     rewritten.Query,
		Variables: string(rewritten.Variables),
	}
	if err := s.store.CreateWorkflowApp(ctx, app); err != nil {
		return err
	}
	return s.recordDuplicate(ctx, uid, shareID, sourceID, newID, model.EntityTypeWorkflowApp)
}
