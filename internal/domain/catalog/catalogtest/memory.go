// Package catalogtest provides an in-memory catalog for tests of packages
// that read pricing.
package catalogtest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/catalog"
)

// Repository implements catalog.Repository over maps.
type Repository struct {
	mu       sync.RWMutex
	games    map[uuid.UUID]catalog.Game
	chapters map[uuid.UUID][]catalog.Chapter
}

var _ catalog.Repository = (*Repository)(nil)

// NewRepository creates an empty catalog.
func NewRepository() *Repository {
	return &Repository{
		games:    make(map[uuid.UUID]catalog.Game),
		chapters: make(map[uuid.UUID][]catalog.Chapter),
	}
}

// PutGame inserts or replaces a game and its chapters.
func (m *Repository) PutGame(g catalog.Game, chapters ...catalog.Chapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g
	cs := append([]catalog.Chapter(nil), chapters...)
	for i := range cs {
		cs[i].GameID = g.ID
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Order < cs[j].Order })
	m.chapters[g.ID] = cs
}

func (m *Repository) GetGame(_ context.Context, id uuid.UUID) (*catalog.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, catalog.ErrGameNotFound
	}
	return &g, nil
}

func (m *Repository) ListChapters(_ context.Context, gameID uuid.UUID) ([]catalog.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.Chapter(nil), m.chapters[gameID]...), nil
}
