package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/optimade-server/internal/config"
	"github.com/stacklok/optimade-server/internal/links"
)

func TestNameFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		include     []string
		exclude     []string
		id          string
		wantInclude bool
		wantReason  string
	}{
		{
			name:        "no patterns",
			id:          "mp",
			wantInclude: true,
			wantReason:  "no name filters specified",
		},
		{
			name:        "include match",
			include:     []string{"mp*"},
			id:          "mpds",
			wantInclude: true,
			wantReason:  "included by pattern 'mp*'",
		},
		{
			name:        "include miss",
			include:     []string{"mp*"},
			id:          "cod",
			wantInclude: false,
			wantReason:  "no match found in include patterns",
		},
		{
			name:        "exclude match",
			exclude:     []string{"exmpl"},
			id:          "exmpl",
			wantInclude: false,
			wantReason:  "excluded by pattern 'exmpl'",
		},
		{
			name:        "exclude takes precedence",
			include:     []string{"*"},
			exclude:     []string{"*od"},
			id:          "tcod",
			wantInclude: false,
			wantReason:  "excluded by pattern '*od'",
		},
		{
			name:        "exclude miss",
			exclude:     []string{"exmpl"},
			id:          "aflow",
			wantInclude: true,
			wantReason:  "no match in exclude patterns",
		},
		{
			name:        "character class",
			include:     []string{"[a-c]*"},
			id:          "cmr",
			wantInclude: true,
			wantReason:  "included by pattern '[a-c]*'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewNameFilter(&config.NameFilterConfig{Include: tt.include, Exclude: tt.exclude})
			require.NoError(t, err)

			include, reason := f.ShouldInclude(tt.id)
			assert.Equal(t, tt.wantInclude, include)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestNewNameFilter_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewNameFilter(&config.NameFilterConfig{Include: []string{"[a-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid include pattern")

	_, err = NewNameFilter(&config.NameFilterConfig{Exclude: []string{"[z-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestNameFilter_Apply(t *testing.T) {
	t.Parallel()

	list := []links.Link{
		{ID: "aflow", LinkType: links.LinkTypeExternal},
		{ID: "exmpl", LinkType: links.LinkTypeExternal},
		{ID: "mp", LinkType: links.LinkTypeExternal},
	}

	f, err := NewNameFilter(&config.NameFilterConfig{Exclude: []string{"exmpl"}})
	require.NoError(t, err)

	kept := f.Apply(context.Background(), list)
	require.Len(t, kept, 2)
	assert.Equal(t, "aflow", kept[0].ID)
	assert.Equal(t, "mp", kept[1].ID)

	none, err := NewNameFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, list, none.Apply(context.Background(), list))
}
