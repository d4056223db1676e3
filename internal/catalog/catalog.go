/*
Package catalog is the searchable component snippet catalog.

Entries are kept in a Bleve index, either in memory or persisted on disk
with the scorch backend. Registering an entry under an existing id
overwrites it, so promotion can be retried safely.
*/
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	bolt "go.etcd.io/bbolt"
)

// DefaultLockTimeout bounds how long Open waits for the index file lock.
const DefaultLockTimeout = time.Second

// ErrLocked is returned when another process holds the on-disk index.
var ErrLocked = errors.New("catalog index is locked by another process")

var storedFields = []string{
	"name", "component_type", "category", "variant", "description", "code", "tags", "source", "metadata",
}

// Result is a catalog hit with its relevance score.
type Result struct {
	Entry
	Score float64 `json:"score"`
}

// Catalog is a Bleve-backed snippet catalog.
type Catalog struct {
	index     bleve.Index
	indexPath string
	mu        sync.RWMutex
}

// NewMemory creates an in-memory catalog.
func NewMemory() (*Catalog, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// Open opens the catalog at indexPath, creating it if needed.
// An empty path yields an in-memory catalog.
func Open(indexPath string) (*Catalog, error) {
	return OpenTimeout(indexPath, DefaultLockTimeout)
}

// OpenTimeout is Open with an explicit wait for the index file lock.
// Scorch holds that lock exclusively, so a second process gets ErrLocked
// once the timeout elapses.
func OpenTimeout(indexPath string, lockTimeout time.Duration) (*Catalog, error) {
	if indexPath == "" {
		return NewMemory()
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	runtimeConfig := map[string]interface{}{"bolt_timeout": lockTimeout.String()}
	index, err := bleve.OpenUsing(indexPath, runtimeConfig)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.NewUsing(indexPath, buildIndexMapping(), scorch.Name, scorch.Name, runtimeConfig)
	}
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, indexPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog index %s: %w", indexPath, err)
	}
	return &Catalog{index: index, indexPath: indexPath}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	doc.AddFieldMappingsAt("name", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("description", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("tags", bleve.NewTextFieldMapping())

	// Exact-match filters.
	doc.AddFieldMappingsAt("component_type", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("category", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("variant", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("source", bleve.NewKeywordFieldMapping())

	// Stored for retrieval only.
	for _, name := range []string{"code", "metadata"} {
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// RegisterSnippet adds or replaces an entry.
func (c *Catalog) RegisterSnippet(e Entry) error {
	return c.RegisterMany([]Entry{e})
}

// RegisterMany adds or replaces entries in one batch.
func (c *Catalog) RegisterMany(entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := c.index.NewBatch()
	for _, e := range entries {
		if e.ID == "" {
			return errors.New("catalog entry id is required")
		}
		doc, err := toDocument(e)
		if err != nil {
			return err
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("failed to index entry %s: %w", e.ID, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index entries: %w", err)
	}
	return nil
}

// Get returns the entry with the given id, or nil.
func (c *Catalog) Get(id string) (*Entry, error) {
	results, err := c.search(query.NewDocIDQuery([]string{id}), 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0].Entry, nil
}

// Count returns the number of entries.
func (c *Catalog) Count() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return n, nil
}

// Search performs a BM25 keyword search.
func (c *Catalog) Search(text string, limit int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return c.search(bleve.NewMatchQuery(text), limit)
}

// ByComponentType lists entries of one component type, optionally narrowed
// by a keyword query.
func (c *Catalog) ByComponentType(componentType, text string, limit int) ([]Result, error) {
	typeQuery := bleve.NewTermQuery(componentType)
	typeQuery.SetField("component_type")

	if strings.TrimSpace(text) == "" {
		return c.search(typeQuery, limit)
	}
	return c.search(bleve.NewConjunctionQuery(bleve.NewMatchQuery(text), typeQuery), limit)
}

// All returns up to limit entries.
func (c *Catalog) All(limit int) ([]Result, error) {
	return c.search(bleve.NewMatchAllQuery(), limit)
}

// Close releases the index.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		return nil
	}
	err := c.index.Close()
	c.index = nil
	return err
}

func (c *Catalog) search(q query.Query, limit int) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = storedFields

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Result{Entry: fromFields(hit.ID, hit.Fields), Score: hit.Score})
	}
	return out, nil
}

func toDocument(e Entry) (map[string]interface{}, error) {
	doc := map[string]interface{}{
		"name":           e.Name,
		"component_type": e.ComponentType,
		"category":       e.Category,
		"variant":        e.Variant,
		"description":    e.Description,
		"code":           e.Code,
		"source":         e.Source,
	}
	if len(e.Tags) > 0 {
		doc["tags"] = e.Tags
	}
	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata for %s: %w", e.ID, err)
		}
		doc["metadata"] = string(meta)
	}
	return doc, nil
}

func fromFields(id string, fields map[string]interface{}) Entry {
	str := func(name string) string {
		s, _ := fields[name].(string)
		return s
	}

	e := Entry{
		ID:            id,
		Name:          str("name"),
		ComponentType: str("component_type"),
		Category:      str("category"),
		Variant:       str("variant"),
		Description:   str("description"),
		Code:          str("code"),
		Source:        str("source"),
	}

	switch tags := fields["tags"].(type) {
	case string:
		e.Tags = []string{tags}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				e.Tags = append(e.Tags, s)
			}
		}
	}

	if raw := str("metadata"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &e.Metadata)
	}
	return e
}
