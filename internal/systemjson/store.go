// Package systemjson stores named, searchable JSON documents that hold data,
// instructions or workflows for a domain. Documents live in the
// storage.NamespaceSystemJSON namespace, independent of memory libraries.
package systemjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/relevance"
	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/pkg/types"
)

var (
	// ErrNotFound indicates no document has the requested name.
	ErrNotFound = errors.New("system JSON not found")

	// ErrInvalidName indicates a name outside [A-Za-z0-9_-].
	ErrInvalidName = errors.New("invalid system JSON name: use only letters, numbers, underscores, and hyphens")

	// ErrInvalidDocument indicates a missing domain, description or data.
	ErrInvalidDocument = errors.New("invalid system JSON document")
)

// Input is the caller-supplied part of a document.
type Input struct {
	Name        string
	Domain      string
	Description string
	Data        interface{}
	Tags        []string
}

// SearchResult pairs a document summary with its relevance score.
type SearchResult struct {
	types.SystemJSONSummary
	Score float64 `json:"score"`
}

// Store persists system JSON documents in a BlobStore.
type Store struct {
	mu     sync.Mutex
	blobs  storage.BlobStore
	scorer relevance.Scorer
	logger *zap.Logger
	now    func() time.Time
}

// NewStore returns a Store over blobs. A nil logger discards output.
func NewStore(blobs storage.BlobStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:  blobs,
		scorer: relevance.WordOverlap{},
		logger: logger,
		now:    time.Now,
	}
}

// Create validates in and writes it. An existing document with the same name
// is replaced, keeping its CreatedAt; updated reports whether that happened.
func (s *Store) Create(ctx context.Context, in Input) (doc *types.SystemJSON, updated bool, err error) {
	if !types.IsValidName(in.Name) {
		return nil, false, ErrInvalidName
	}
	if strings.TrimSpace(in.Domain) == "" {
		return nil, false, fmt.Errorf("%w: domain is required", ErrInvalidDocument)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, false, fmt.Errorf("%w: description is required", ErrInvalidDocument)
	}
	if in.Data == nil {
		return nil, false, fmt.Errorf("%w: data is required", ErrInvalidDocument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	doc = &types.SystemJSON{
		Name:        in.Name,
		Domain:      in.Domain,
		Description: in.Description,
		Data:        in.Data,
		Tags:        cleanTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.get(ctx, in.Name)
	switch {
	case err == nil:
		doc.CreatedAt = existing.CreatedAt
		updated = true
	case !errors.Is(err, ErrNotFound):
		s.logger.Warn("systemjson: replacing unreadable document", zap.String("name", in.Name), zap.Error(err))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("systemjson: encode %s: %w", in.Name, err)
	}
	if err := s.blobs.Put(ctx, storage.NamespaceSystemJSON, in.Name, data); err != nil {
		return nil, false, fmt.Errorf("systemjson: write %s: %w", in.Name, err)
	}

	s.logger.Info("systemjson: document saved",
		zap.String("name", in.Name),
		zap.String("domain", in.Domain),
		zap.Bool("updated", updated))
	return doc, updated, nil
}

// Get returns the named document or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (*types.SystemJSON, error) {
	if !types.IsValidName(name) {
		return nil, ErrInvalidName
	}
	return s.get(ctx, name)
}

// List returns summaries of every readable document sorted by name.
func (s *Store) List(ctx context.Context) ([]types.SystemJSONSummary, error) {
	docs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.SystemJSONSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary())
	}
	return out, nil
}

// Search scores every document's name, domain, description and tags against
// query, keeps the best field score when it is above zero, and returns
// results best first. Ties are ordered by name.
func (s *Store) Search(ctx context.Context, query string) ([]SearchResult, error) {
	docs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, d := range docs {
		fields := append([]string{d.Name, d.Domain, d.Description}, d.Tags...)
		if score := relevance.Max(s.scorer, query, fields...); score > 0 {
			results = append(results, SearchResult{SystemJSONSummary: d.Summary(), Score: score})
		}
	}
	// docs are name-sorted, so a stable sort keeps ties by name.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (s *Store) get(ctx context.Context, name string) (*types.SystemJSON, error) {
	raw, err := s.blobs.Get(ctx, storage.NamespaceSystemJSON, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("systemjson: read %s: %w", name, err)
	}
	var doc types.SystemJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("systemjson: decode %s: %w", name, err)
	}
	return &doc, nil
}

// all loads every document, skipping ones that cannot be read.
func (s *Store) all(ctx context.Context) ([]*types.SystemJSON, error) {
	infos, err := s.blobs.List(ctx, storage.NamespaceSystemJSON)
	if err != nil {
		return nil, fmt.Errorf("systemjson: list: %w", err)
	}
	docs := make([]*types.SystemJSON, 0, len(infos))
	for _, info := range infos {
		doc, err := s.get(ctx, info.Key)
		if err != nil {
			s.logger.Warn("systemjson: skipping unreadable document", zap.String("name", info.Key), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
