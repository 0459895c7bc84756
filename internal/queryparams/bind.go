package queryparams

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
)

// EntryListingQuery holds the bound parameters of a listing request
type EntryListingQuery struct {
	Filter         string
	ResponseFormat string
	EmailAddress   string
	ResponseFields []string
	Sort           string
	PageLimit      int
	PageOffset     int
	// PageNumber is nil unless the client asked for page based pagination
	PageNumber *int
	PageCursor int
	PageAbove  string
	PageBelow  string
	Include    []string
	APIHint    string
}

// SingleEntryQuery holds the bound parameters of a single entry request
type SingleEntryQuery struct {
	ResponseFormat string
	EmailAddress   string
	ResponseFields []string
	Include        []string
	APIHint        string
}

// Binder turns raw query values into typed queries using the declarations of a ParamSet
type Binder struct {
	params           *ParamSet
	defaultPageLimit int
}

// NewBinder creates a Binder. defaultPageLimit is used when page_limit is absent.
func NewBinder(params *ParamSet, defaultPageLimit int) *Binder {
	return &Binder{params: params, defaultPageLimit: defaultPageLimit}
}

// BindEntryListing binds values into an EntryListingQuery. Every value error is reported
// in a single *BindError.
func (b *Binder) BindEntryListing(values url.Values) (*EntryListingQuery, error) {
	errs := &BindError{}
	raw := b.resolve(values, errs)

	q := &EntryListingQuery{
		Filter:         raw[ParamFilter],
		ResponseFormat: raw[ParamResponseFormat],
		EmailAddress:   raw[ParamEmailAddress],
		ResponseFields: splitList(raw[ParamResponseFields]),
		Sort:           raw[ParamSort],
		PageAbove:      raw[ParamPageAbove],
		PageBelow:      raw[ParamPageBelow],
		Include:        splitList(raw[ParamInclude]),
		APIHint:        raw[ParamAPIHint],
		PageLimit:      b.defaultPageLimit,
	}

	if v, ok := b.intValue(raw, ParamPageLimit, errs); ok {
		q.PageLimit = v
	}
	if v, ok := b.intValue(raw, ParamPageOffset, errs); ok {
		q.PageOffset = v
	}
	if v, ok := b.intValue(raw, ParamPageCursor, errs); ok {
		q.PageCursor = v
	}
	if v, ok := b.intValue(raw, ParamPageNumber, errs); ok {
		q.PageNumber = &v
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return q, nil
}

// BindSingleEntry binds values into a SingleEntryQuery
func (b *Binder) BindSingleEntry(values url.Values) (*SingleEntryQuery, error) {
	errs := &BindError{}
	raw := b.resolve(values, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}
	return &SingleEntryQuery{
		ResponseFormat: raw[ParamResponseFormat],
		EmailAddress:   raw[ParamEmailAddress],
		ResponseFields: splitList(raw[ParamResponseFields]),
		Include:        splitList(raw[ParamInclude]),
		APIHint:        raw[ParamAPIHint],
	}, nil
}

// resolve applies defaults and string level checks for every declared parameter.
// Names the ParamSet does not declare are skipped; the Classifier deals with those.
func (b *Binder) resolve(values url.Values, errs *BindError) map[string]string {
	raw := make(map[string]string, len(b.params.params))
	for _, p := range b.params.params {
		v, present := values[p.Name]
		value := p.Default
		if present && len(v) > 0 {
			value = v[len(v)-1]
		}
		if present && p.Pattern != nil && !p.Pattern.MatchString(value) {
			errs.add(p.Name, fmt.Sprintf("value %q does not match pattern %s", value, p.Pattern.String()))
			continue
		}
		if present && p.Type == TypeEmail && value != "" {
			if _, err := mail.ParseAddress(value); err != nil {
				errs.add(p.Name, fmt.Sprintf("value %q is not a valid email address", value))
				continue
			}
		}
		if present {
			raw[p.Name] = value
			continue
		}
		if value != "" {
			raw[p.Name] = value
		}
	}
	return raw
}

func (b *Binder) intValue(raw map[string]string, name string, errs *BindError) (int, bool) {
	s, ok := raw[name]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		errs.add(name, fmt.Sprintf("value %q is not an integer", s))
		return 0, false
	}
	if p, found := b.params.Lookup(name); found && p.HasMin && v < p.Min {
		errs.add(name, fmt.Sprintf("value %d must be greater than or equal to %d", v, p.Min))
		return 0, false
	}
	return v, true
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
