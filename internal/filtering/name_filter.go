package filtering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gobwas/glob"

	"github.com/stacklok/optimade-server/internal/config"
	"github.com/stacklok/optimade-server/internal/links"
)

// NameFilter decides which link ids are kept based on include and exclude patterns.
// Patterns are compiled once; a NameFilter is safe for concurrent use.
type NameFilter struct {
	include []pattern
	exclude []pattern
}

type pattern struct {
	raw  string
	glob glob.Glob
}

// NewNameFilter compiles the patterns of cfg. A nil cfg keeps everything.
func NewNameFilter(cfg *config.NameFilterConfig) (*NameFilter, error) {
	f := &NameFilter{}
	if cfg == nil {
		return f, nil
	}

	var err error
	if f.include, err = compile(cfg.Include); err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	if f.exclude, err = compile(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return f, nil
}

func compile(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, pattern{raw: p, glob: g})
	}
	return out, nil
}

// ShouldInclude determines if name should be kept. Exclude patterns take precedence.
// Returns (shouldInclude bool, reason string)
func (f *NameFilter) ShouldInclude(name string) (bool, string) {
	for _, p := range f.exclude {
		if p.glob.Match(name) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.raw)
		}
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if p.glob.Match(name) {
				return true, fmt.Sprintf("included by pattern '%s'", p.raw)
			}
		}
		return false, "no match found in include patterns"
	}

	if len(f.exclude) > 0 {
		return true, "no match in exclude patterns"
	}
	return true, "no name filters specified"
}

// Apply returns the links whose id passes the filter, in their original order
func (f *NameFilter) Apply(ctx context.Context, list []links.Link) []links.Link {
	kept := make([]links.Link, 0, len(list))
	for _, l := range list {
		include, reason := f.ShouldInclude(l.ID)
		if !include {
			slog.DebugContext(ctx, "Link filtered out", "id", l.ID, "reason", reason)
			continue
		}
		kept = append(kept, l)
	}
	return kept
}
