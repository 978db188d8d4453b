package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emrgen/canvas/internal/compress"
	"github.com/emrgen/canvas/internal/ids"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/sanitize"
	"github.com/emrgen/canvas/internal/search"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
	"github.com/emrgen/canvas/internal/toolset"
	"github.com/emrgen/canvas/internal/vector"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const previewLimit = 500

// reuseOrAlloc returns the share row to publish into: the existing
// non-deleted row for (uid, entityID, entityType) with its options
// refreshed, or a fresh row with a newly allocated identifier. The second
// return value reports whether the row still has to be created.
func (s *ShareService) reuseOrAlloc(ctx context.Context, uid string, ref EntityRef, opts PublishOptions, title string) (*model.Share, bool, error) {
	if opts.Title != "" {
		title = opts.Title
	}

	existing, err := s.store.GetShareByEntity(ctx, uid, ref.EntityID, ref.EntityType)
	if err != nil && !store.IsNotFound(err) {
		return nil, false, err
	}
	if existing != nil {
		existing.Title = title
		if opts.ParentShareID != "" {
			existing.ParentShareID = opts.ParentShareID
		}
		if opts.TemplateID != "" {
			existing.TemplateID = opts.TemplateID
		}
		existing.AllowDuplication = opts.AllowDuplication
		return existing, false, nil
	}

	return &model.Share{
		ID:               ids.Alloc(ref.EntityType),
		UID:              uid,
		EntityID:         ref.EntityID,
		EntityType:       string(ref.EntityType),
		Title:            title,
		ParentShareID:    opts.ParentShareID,
		TemplateID:       opts.TemplateID,
		AllowDuplication: opts.AllowDuplication,
	}, true, nil
}

// writeShare serializes the payload, puts it at the share's public
// storage key, and persists the share row. The object write happens
// first so a row never points at a missing blob.
func (s *ShareService) writeShare(ctx context.Context, share *model.Share, payload any, create bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("share %s: marshal payload: %w", share.ID, err)
	}

	share.StorageKey = storage.ShareKey(share.ID)
	if err := s.objects.Put(ctx, share.StorageKey, data, storage.VisibilityPublic); err != nil {
		return fmt.Errorf("share %s: put payload: %w", share.ID, err)
	}

	if create {
		err = s.store.CreateShare(ctx, share)
	} else {
		err = s.store.UpdateShare(ctx, share)
	}
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, shareDataKey(share.ID)); err != nil {
			logrus.Errorf("share %s: cache del: %v", share.ID, err)
		}
	}
	return nil
}

func (s *ShareService) serializeVector(ctx context.Context, uid, entityID string, t model.EntityType) []byte {
	vec, err := s.vectors.Serialize(ctx, uid, vector.Ref{EntityID: entityID, EntityType: t})
	if err != nil {
		logrus.Errorf("entity %s: serialize vector: %v", entityID, err)
		return nil
	}
	return vec
}

func (s *ShareService) indexEntity(ctx context.Context, uid, entityID string, t model.EntityType, title, content string, created, updated time.Time) {
	err := s.index.UpsertDocument(ctx, search.Document{
		ID:        entityID,
		Type:      string(t),
		Title:     title,
		UID:       uid,
		Content:   truncatePreview(content, previewLimit*10),
		CreatedAt: created,
		UpdatedAt: updated,
	})
	if err != nil {
		logrus.Errorf("entity %s: index upsert: %v", entityID, err)
	}
}

func (s *ShareService) publishDocument(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	doc, err := s.store.GetDocument(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("document %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if doc.UID != uid {
		return nil, fmt.Errorf("document %s: %w", entityID, ErrNotFound)
	}

	content, err := compress.ByName(doc.Compression).Decode([]byte(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("document %s: decode content: %w", entityID, err)
	}

	var items []ContextItem
	if doc.ContextItems != "" {
		if err := json.Unmarshal([]byte(doc.ContextItems), &items); err != nil {
			logrus.Errorf("document %s: parse context items: %v", entityID, err)
		}
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeDocument}, opts, doc.Title)
	if err != nil {
		return nil, err
	}

	payload := documentPayload{
		DocumentID:   doc.ID,
		Title:        doc.Title,
		Content:      string(content),
		ContextItems: items,
		Vector:       s.serializeVector(ctx, uid, doc.ID, model.EntityTypeDocument),
	}
	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}

	s.indexEntity(ctx, uid, doc.ID, model.EntityTypeDocument, doc.Title, string(content), doc.CreatedAt, doc.UpdatedAt)
	return share, nil
}

func (s *ShareService) publishResource(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	resource, err := s.store.GetResource(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("resource %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if resource.UID != uid {
		return nil, fmt.Errorf("resource %s: %w", entityID, ErrNotFound)
	}

	content, err := compress.ByName(resource.Compression).Decode([]byte(resource.Content))
	if err != nil {
		return nil, fmt.Errorf("resource %s: decode content: %w", entityID, err)
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeResource}, opts, resource.Title)
	if err != nil {
		return nil, err
	}

	payload := resourcePayload{
		ResourceID:   resource.ID,
		Title:        resource.Title,
		ResourceType: resource.ResourceType,
		Content:      string(content),
		Vector:       s.serializeVector(ctx, uid, resource.ID, model.EntityTypeResource),
	}
	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}

	s.indexEntity(ctx, uid, resource.ID, model.EntityTypeResource, resource.Title, string(content), resource.CreatedAt, resource.UpdatedAt)
	return share, nil
}

func (s *ShareService) publishCodeArtifact(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	artifact, err := s.store.GetCodeArtifact(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("code artifact %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if artifact.UID != uid {
		return nil, fmt.Errorf("code artifact %s: %w", entityID, ErrNotFound)
	}

	content, err := compress.ByName(artifact.Compression).Decode([]byte(artifact.Content))
	if err != nil {
		return nil, fmt.Errorf("code artifact %s: decode content: %w", entityID, err)
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeCodeArtifact}, opts, artifact.Title)
	if err != nil {
		return nil, err
	}

	payload := codeArtifactPayload{
		ArtifactID:   artifact.ID,
		Title:        artifact.Title,
		ArtifactType: artifact.ArtifactType,
		Language:     artifact.Language,
		Content:      string(content),
	}
	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}

	s.indexEntity(ctx, uid, artifact.ID, model.EntityTypeCodeArtifact, artifact.Title, string(content), artifact.CreatedAt, artifact.UpdatedAt)
	return share, nil
}

func (s *ShareService) publishSkillResponse(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	response, err := s.store.GetSkillResponse(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("skill response %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if response.UID != uid {
		return nil, fmt.Errorf("skill response %s: %w", entityID, ErrNotFound)
	}

	steps, err := s.store.ListSkillSteps(ctx, response.ID)
	if err != nil {
		return nil, err
	}

	var toolsets []*toolset.Toolset
	if response.Toolsets != "" {
		if err := json.Unmarshal([]byte(response.Toolsets), &toolsets); err != nil {
			logrus.Errorf("skill response %s: parse toolsets: %v", entityID, err)
		}
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeSkillResponse}, opts, response.Title)
	if err != nil {
		return nil, err
	}

	payload := skillResponsePayload{
		ResultID:       response.ID,
		Title:          response.Title,
		SkillName:      response.SkillName,
		Query:          response.Query,
		Context:        response.Context,
		History:        response.History,
		StructuredData: response.StructuredData,
		Toolsets:       toolsets,
		Version:        response.Version,
		Vector:         s.serializeVector(ctx, uid, response.ID, model.EntityTypeSkillResponse),
	}
	for _, step := range steps {
		payload.Steps = append(payload.Steps, skillStepPayload{Name: step.Name, Content: step.Content})
	}

	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}
	return share, nil
}

func (s *ShareService) publishPage(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	page, err := s.store.GetPage(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("page %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if page.UID != uid {
		return nil, fmt.Errorf("page %s: %w", entityID, ErrNotFound)
	}

	raw, err := compress.ByName(page.Compression).Decode(page.State)
	if err != nil {
		return nil, fmt.Errorf("page %s: decode state: %w", entityID, err)
	}
	state, err := s.pages.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("page %s: decode draft: %w", entityID, err)
	}

	title := page.Title
	if title == "" {
		title = state.Title
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypePage}, opts, title)
	if err != nil {
		return nil, err
	}

	payload := pagePayload{
		PageID:  page.ID,
		Title:   title,
		NodeIDs: state.NodeIDs,
		Config:  state.Config,
	}
	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}
	return share, nil
}

func (s *ShareService) publishWorkflowApp(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	app, err := s.store.GetWorkflowApp(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("workflow app %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if app.UID != uid {
		return nil, fmt.Errorf("workflow app %s: %w", entityID, ErrNotFound)
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeWorkflowApp}, opts, app.Title)
	if err != nil {
		return nil, err
	}

	payload := workflowAppPayload{
		AppID: app.ID,
		Title: app.Title,
		Query: app.Query,
	}
	if app.Variables != "" {
		payload.Variables = json.RawMessage(app.Variables)
	}
	if err := s.writeShare(ctx, share, payload, create); err != nil {
		return nil, err
	}
	return share, nil
}

// entityTypeForNode maps a graph node type to the entity type backing it.
// Media, memo and group nodes carry no backing entity.
func entityTypeForNode(nodeType string) (model.EntityType, bool) {
	switch nodeType {
	case model.NodeTypeDocument:
		return model.EntityTypeDocument, true
	case model.NodeTypeResource:
		return model.EntityTypeResource, true
	case model.NodeTypeCodeArtifact:
		return model.EntityTypeCodeArtifact, true
	case model.NodeTypeSkillResponse:
		return model.EntityTypeSkillResponse, true
	}
	return "", false
}

// mediaURLField names the metadata field holding the public URL for a
// media node type.
func mediaURLField(nodeType string) (string, bool) {
	switch nodeType {
	case model.NodeTypeImage:
		return "imageUrl", true
	case model.NodeTypeVideo:
		return "videoUrl", true
	case model.NodeTypeAudio:
		return "audioUrl", true
	}
	return "", false
}

// publishCanvas publishes a whole graph: every entity-backed node becomes
// a child share linked through parent_share_id, private media objects are
// re-hosted under the share's public media prefix, and the snapshot
// itself is sanitized node by node before it is written. A failing node
// never aborts its siblings; it is logged and published without a shareId.
func (s *ShareService) publishCanvas(ctx context.Context, uid, entityID string, opts PublishOptions) (*model.Share, error) {
	canvas, err := s.store.GetCanvas(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("canvas %s: %w", entityID, ErrNotFound)
		}
		return nil, err
	}
	if canvas.UID != uid {
		return nil, fmt.Errorf("canvas %s: %w", entityID, ErrNotFound)
	}

	snapshot, err := s.decodeCanvasState(canvas)
	if err != nil {
		return nil, err
	}

	title := canvas.Title
	if snapshot.Title != "" {
		title = snapshot.Title
	}

	share, create, err := s.reuseOrAlloc(ctx, uid, EntityRef{entityID, model.EntityTypeCanvas}, opts, title)
	if err != nil {
		return nil, err
	}

	report := NewReport()

	// Several nodes may reference the same entity. Each entity is
	// published exactly once and the resulting share is written back into
	// every referencing node, so concurrent fan-out can never race two
	// creates for one (uid, entityId, entityType) triple.
	type entityNodes struct {
		entityType model.EntityType
		nodes      []*model.Node
	}
	grouped := map[string]*entityNodes{}
	var order []string
	for i := range snapshot.Nodes {
		node := &snapshot.Nodes[i]
		entityType, ok := entityTypeForNode(node.Type)
		if !ok || node.Data.EntityID == "" {
			continue
		}
		g, seen := grouped[node.Data.EntityID]
		if !seen {
			g = &entityNodes{entityType: entityType}
			grouped[node.Data.EntityID] = g
			order = append(order, node.Data.EntityID)
		}
		g.nodes = append(g.nodes, node)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(publishNodeConcurrency)
	for _, nodeEntityID := range order {
		nodeEntityID := nodeEntityID
		g := grouped[nodeEntityID]
		group.Go(func() error {
			child, err := s.processShare(gctx, uid, EntityRef{nodeEntityID, g.entityType}, PublishOptions{
				ParentShareID:    share.ID,
				AllowDuplication: share.AllowDuplication,
			})
			if err != nil {
				logrus.Errorf("canvas %s: publish entity %s: %v", entityID, nodeEntityID, err)
				for _, node := range g.nodes {
					report.AddSkipped(node.ID, nodeEntityID, g.entityType, err.Error())
				}
				return nil
			}
			for _, node := range g.nodes {
				if node.Data.Metadata == nil {
					node.Data.Metadata = map[string]any{}
				}
				node.Data.Metadata["shareId"] = child.ID
				report.AddOK(node.ID, nodeEntityID, g.entityType)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// drop stale media records from a previous publish; the objects are
	// overwritten in place at the same keys
	if err := s.store.DeleteStaticFilesByEntity(ctx, share.ID); err != nil {
		logrus.Errorf("canvas %s: clear media records: %v", entityID, err)
	}

	media, mctx := errgroup.WithContext(ctx)
	media.SetLimit(publishMediaConcurrency)
	for i := range snapshot.Nodes {
		node := &snapshot.Nodes[i]
		urlField, ok := mediaURLField(node.Type)
		if !ok || node.Data.Metadata == nil {
			continue
		}
		storageKey, _ := node.Data.Metadata["storageKey"].(string)
		if storageKey == "" {
			continue
		}
		media.Go(func() error {
			data, err := s.objects.Get(mctx, storageKey)
			if err != nil {
				logrus.Errorf("canvas %s: read media %s: %v", entityID, storageKey, err)
				return nil
			}
			publicKey := storage.ShareMediaKey(share.ID, node.ID)
			if err := s.objects.Put(mctx, publicKey, data, storage.VisibilityPublic); err != nil {
				logrus.Errorf("canvas %s: rehost media %s: %v", entityID, storageKey, err)
				return nil
			}
			if err := s.store.CreateStaticFile(mctx, &model.StaticFile{
				UID:        uid,
				StorageKey: publicKey,
				FileType:   node.Type,
				EntityID:   share.ID,
				EntityType: string(model.EntityTypeCanvas),
				CanvasID:   entityID,
				Source:     storageKey,
			}); err != nil {
				logrus.Errorf("canvas %s: record rehosted media %s: %v", entityID, publicKey, err)
			}
			node.Data.Metadata[urlField] = s.objects.PublicURL(publicKey)
			return nil
		})
	}
	if err := media.Wait(); err != nil {
		return nil, err
	}

	public := &model.GraphSnapshot{
		Title: title,
		Nodes: make([]model.Node, 0, len(snapshot.Nodes)),
		Edges: snapshot.Edges,
	}
	for _, node := range snapshot.Nodes {
		node.Data.ContentPreview = truncatePreview(node.Data.ContentPreview, previewLimit)
		public.Nodes = append(public.Nodes, sanitize.Node(node))
	}
	for _, file := range snapshot.Files {
		public.Files = append(public.Files, sanitize.File(file))
	}

	if err := s.writeShare(ctx, share, public, create); err != nil {
		return nil, err
	}

	for _, skipped := range report.Skipped() {
		logrus.Warnf("canvas %s: node %s (%s) published without share: %s",
			entityID, skipped.NodeID, skipped.EntityID, skipped.Reason)
	}
	return share, nil
}

// truncatePreview caps a preview string at limit runes.
func truncatePreview(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
