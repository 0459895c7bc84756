package links

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/samber/lo"
)

// MemoryStore serves links from memory. It is safe for concurrent use. Replace swaps
// the whole set, so a single call never sees a mix of old and new links.
type MemoryStore struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	links []Link
	byID  map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store over links, ordered by id
func NewMemoryStore(links ...Link) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(links...)
	return s
}

// Replace swaps the served links
func (s *MemoryStore) Replace(links ...Link) {
	sorted := make([]Link, len(links))
	copy(sorted, links)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]int, len(sorted))
	for i, l := range sorted {
		byID[l.ID] = i
	}
	s.snap.Store(&snapshot{links: sorted, byID: byID})
}

// LoadFile reads links from a YAML or JSON file
func LoadFile(path string) ([]Link, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	links, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load links from %s: %w", path, err)
	}
	return links, nil
}

// Merge adds extra to base. An extra link replaces the base link with the same id.
func Merge(base, extra []Link) []Link {
	merged := lo.SliceToMap(base, func(l Link) (string, Link) { return l.ID, l })
	for _, l := range extra {
		merged[l.ID] = l
	}
	out := lo.Values(merged)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns one page of links
func (s *MemoryStore) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative")
	}

	snap := s.snap.Load()
	total := len(snap.links)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	page := make([]Link, end-start)
	copy(page, snap.links[start:end])

	return &ListResult{
		Links:     page,
		Available: total,
		More:      end < total,
	}, nil
}

// Get returns the link with the given id
func (s *MemoryStore) Get(_ context.Context, id string) (*Link, error) {
	snap := s.snap.Load()
	i, ok := snap.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, id)
	}
	l := snap.links[i]
	return &l, nil
}

// Count returns the number of links per link type
func (s *MemoryStore) Count(_ context.Context) map[LinkType]int {
	return lo.CountValuesBy(s.snap.Load().links, func(l Link) LinkType { return l.LinkType })
}
