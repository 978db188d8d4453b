package search

import (
	"context"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxEntities = "canvas_entities"

// Meili implements Indexer via Meilisearch.
type Meili struct {
	client meili.ServiceManager
}

var _ Indexer = (*Meili)(nil)

// NewMeili creates a Meilisearch-backed indexer and configures the
// entities index.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	if _, err := client.CreateIndex(&meili.IndexConfig{
		Uid:        idxEntities,
		PrimaryKey: "id",
	}); err != nil {
		logrus.Warnf("search: create index %s (may already exist): %v", idxEntities, err)
	}

	index := client.Index(idxEntities)
	filterable := []interface{}{"type", "uid"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		logrus.Warnf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		logrus.Warnf("search: update searchable attrs: %v", err)
	}

	return &Meili{client: client}
}

func (m *Meili) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := m.client.Index(idxEntities).AddDocuments([]Document{doc}, nil)
	return err
}

func (m *Meili) DeleteDocument(ctx context.Context, id string) error {
	_, err := m.client.Index(idxEntities).DeleteDocument(id, nil)
	return err
}
