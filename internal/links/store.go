package links

import (
	"context"
	"errors"
)

// ErrLinkNotFound is returned when no link has the requested id
var ErrLinkNotFound = errors.New("link not found")

// ListOptions selects a page of links
type ListOptions struct {
	// Offset is the number of links to skip
	Offset int
	// Limit is the page size. Zero returns no links, only counts.
	Limit int
}

// ListResult is one page of links
type ListResult struct {
	Links []Link
	// Available is the total number of links in the store
	Available int
	// More is true when links follow this page
	More bool
}

// Store gives read access to the link resources
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store
type Store interface {
	// List returns one page of links ordered by id
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
	// Get returns the link with the given id, or ErrLinkNotFound
	Get(ctx context.Context, id string) (*Link, error)
	// Count returns the number of links, grouped by link type
	Count(ctx context.Context) map[LinkType]int
}
