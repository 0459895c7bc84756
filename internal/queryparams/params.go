// Package queryparams declares the query parameters accepted by the OPTIMADE endpoints and
// classifies the parameter names found on incoming requests.
package queryparams

import (
	"regexp"
	"sort"
)

// Kind identifies the endpoint kind a ParamSet belongs to
type Kind string

const (
	// KindEntryListing covers listing endpoints such as /links
	KindEntryListing Kind = "entry_listing"

	// KindSingleEntry covers single resource endpoints such as /links/{id} and /info
	KindSingleEntry Kind = "single_entry"
)

// ValueType is the type a parameter value is bound to
type ValueType int

const (
	// TypeString binds the raw value
	TypeString ValueType = iota
	// TypeInt binds a base 10 integer
	TypeInt
	// TypeEmail binds a mail address
	TypeEmail
)

// Parameter names shared by both endpoint kinds
const (
	ParamFilter         = "filter"
	ParamResponseFormat = "response_format"
	ParamEmailAddress   = "email_address"
	ParamResponseFields = "response_fields"
	ParamSort           = "sort"
	ParamPageLimit      = "page_limit"
	ParamPageOffset     = "page_offset"
	ParamPageNumber     = "page_number"
	ParamPageCursor     = "page_cursor"
	ParamPageAbove      = "page_above"
	ParamPageBelow      = "page_below"
	ParamInclude        = "include"
	ParamAPIHint        = "api_hint"
)

var (
	fieldListPattern = regexp.MustCompile(`^([a-z_][a-z_0-9]*(,[a-z_][a-z_0-9]*)*)?$`)
	apiHintPattern   = regexp.MustCompile(`^(v[0-9]+(\.[0-9]+)?)?$`)
)

// Param describes one recognized query parameter
type Param struct {
	Name    string
	Type    ValueType
	Default string
	// Pattern, when set, must match the whole raw value
	Pattern *regexp.Regexp
	// Min is the lower bound for TypeInt values when HasMin is set
	Min    int
	HasMin bool
}

// ParamSet is the immutable declaration of the parameters of one endpoint kind.
type ParamSet struct {
	kind        Kind
	params      []Param
	recognized  map[string]struct{}
	unsupported []string
}

// NewParamSet builds a ParamSet. Names listed as unsupported are expected to be declared
// among params; entries that are not are still reported as unsupported when present.
func NewParamSet(kind Kind, params []Param, unsupported ...string) *ParamSet {
	recognized := make(map[string]struct{}, len(params))
	for _, p := range params {
		recognized[p.Name] = struct{}{}
	}
	return &ParamSet{
		kind:        kind,
		params:      append([]Param(nil), params...),
		recognized:  recognized,
		unsupported: append([]string(nil), unsupported...),
	}
}

// Kind returns the endpoint kind
func (s *ParamSet) Kind() Kind {
	return s.kind
}

// Recognizes reports whether name can be bound by this endpoint kind
func (s *ParamSet) Recognizes(name string) bool {
	_, ok := s.recognized[name]
	return ok
}

// IsUnsupported reports whether name is on the unsupported list
func (s *ParamSet) IsUnsupported(name string) bool {
	for _, u := range s.unsupported {
		if u == name {
			return true
		}
	}
	return false
}

// Names returns the recognized parameter names in sorted order
func (s *ParamSet) Names() []string {
	names := make([]string, 0, len(s.recognized))
	for n := range s.recognized {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unsupported returns a copy of the unsupported list
func (s *ParamSet) Unsupported() []string {
	return append([]string(nil), s.unsupported...)
}

// Params returns a copy of the parameter declarations
func (s *ParamSet) Params() []Param {
	return append([]Param(nil), s.params...)
}

// Lookup returns the declaration for name
func (s *ParamSet) Lookup(name string) (Param, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func commonParams() []Param {
	return []Param{
		{Name: ParamResponseFormat, Type: TypeString, Default: "json"},
		{Name: ParamEmailAddress, Type: TypeEmail},
		{Name: ParamResponseFields, Type: TypeString, Pattern: fieldListPattern},
		{Name: ParamInclude, Type: TypeString, Default: "references"},
		{Name: ParamAPIHint, Type: TypeString, Pattern: apiHintPattern},
	}
}

// EntryListingParams returns the parameter declarations of listing endpoints.
// The server implements offset and page-number pagination only, so the cursor and
// value-based "below" parameters are recognized but unsupported.
func EntryListingParams() *ParamSet {
	params := append(commonParams(),
		Param{Name: ParamFilter, Type: TypeString},
		Param{Name: ParamSort, Type: TypeString, Pattern: fieldListPattern},
		Param{Name: ParamPageLimit, Type: TypeInt, HasMin: true},
		Param{Name: ParamPageOffset, Type: TypeInt, Default: "0", HasMin: true},
		Param{Name: ParamPageNumber, Type: TypeInt},
		Param{Name: ParamPageCursor, Type: TypeInt, Default: "0", HasMin: true},
		Param{Name: ParamPageAbove, Type: TypeString},
		Param{Name: ParamPageBelow, Type: TypeString},
	)
	return NewParamSet(KindEntryListing, params, ParamPageCursor, ParamPageBelow)
}

// SingleEntryParams returns the parameter declarations of single entry endpoints
func SingleEntryParams() *ParamSet {
	return NewParamSet(KindSingleEntry, commonParams())
}
