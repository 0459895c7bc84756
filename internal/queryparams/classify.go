package queryparams

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
)

// Classification is the outcome for a single parameter name
type Classification string

const (
	// ClassOK names are recognized or carry a known provider prefix
	ClassOK Classification = "ok"
	// ClassUnsupported names are recognized but not honoured by this server
	ClassUnsupported Classification = "unsupported"
	// ClassUnknownProvider names carry a provider prefix nobody has registered
	ClassUnknownProvider Classification = "unknown_provider"
	// ClassInvalid names are rejected
	ClassInvalid Classification = "invalid"
)

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithValidation turns name validation on or off. Validation is on by default.
func WithValidation(enabled bool) ClassifierOption {
	return func(c *Classifier) {
		c.enabled = enabled
	}
}

// WithSupportedPrefixes sets the provider prefixes this server implements
func WithSupportedPrefixes(prefixes ...string) ClassifierOption {
	return func(c *Classifier) {
		c.supported = toSet(prefixes)
	}
}

// WithProviderPrefixes sets the provider prefixes known to the wider ecosystem
func WithProviderPrefixes(prefixes ...string) ClassifierOption {
	return func(c *Classifier) {
		c.SetProviderPrefixes(prefixes...)
	}
}

// Classifier sorts the query parameter names of a request into accepted, ignored and
// rejected names. It is safe for concurrent use. Only the known provider prefixes may
// change after construction, and they are swapped as a whole.
type Classifier struct {
	enabled   bool
	supported map[string]struct{}
	known     atomic.Pointer[map[string]struct{}]
}

// NewClassifier creates a Classifier with validation enabled and empty prefix sets
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		enabled:   true,
		supported: map[string]struct{}{},
	}
	c.SetProviderPrefixes()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProviderPrefixes replaces the known provider prefixes. Requests classified
// concurrently see either the old or the new set, never a mix.
func (c *Classifier) SetProviderPrefixes(prefixes ...string) {
	known := toSet(prefixes)
	c.known.Store(&known)
}

// Enabled reports whether names are validated at all
func (c *Classifier) Enabled() bool {
	return c.enabled
}

// Result holds the buckets of one classification pass. Bucket order follows input order.
type Result struct {
	Invalid         []string
	UnknownProvider []string
	Unsupported     []string
	Accepted        []string
}

// Notices returns the advisory notices of the result in delivery order
func (r *Result) Notices() []Notice {
	var notices []Notice
	if len(r.UnknownProvider) > 0 {
		notices = append(notices, Notice{Kind: UnknownProviderParameterNotice, Params: r.UnknownProvider})
	}
	if len(r.Unsupported) > 0 {
		notices = append(notices, Notice{Kind: UnsupportedParameterNotice, Params: r.Unsupported})
	}
	return notices
}

// Err returns an *InvalidParameterError when invalid names were found
func (r *Result) Err() error {
	if len(r.Invalid) == 0 {
		return nil
	}
	return &InvalidParameterError{Params: r.Invalid}
}

// Of returns the classification of name within this result. A name that is both
// unsupported and invalid reports as invalid.
func (r *Result) Of(name string) Classification {
	switch {
	case lo.Contains(r.Invalid, name):
		return ClassInvalid
	case lo.Contains(r.UnknownProvider, name):
		return ClassUnknownProvider
	case lo.Contains(r.Unsupported, name):
		return ClassUnsupported
	default:
		return ClassOK
	}
}

// Classify places every name into its buckets. With validation disabled the result is empty.
// The unsupported and unrecognized checks run independently, so a name may appear both in
// Unsupported and in Invalid.
func (c *Classifier) Classify(names []string, params *ParamSet) *Result {
	res := &Result{}
	if !c.enabled {
		return res
	}

	for _, name := range names {
		flagged := false
		if params.IsUnsupported(name) {
			res.Unsupported = append(res.Unsupported, name)
			flagged = true
		}
		if !params.Recognizes(name) {
			switch c.classifyUnrecognized(name) {
			case ClassInvalid:
				res.Invalid = append(res.Invalid, name)
				flagged = true
			case ClassUnknownProvider:
				res.UnknownProvider = append(res.UnknownProvider, name)
				flagged = true
			}
		}
		if !flagged {
			res.Accepted = append(res.Accepted, name)
		}
	}
	return res
}

// classifyUnrecognized decides the fate of a name the endpoint cannot bind.
// Only names shaped like _<prefix>_<field> may escape rejection.
func (c *Classifier) classifyUnrecognized(name string) Classification {
	segments := strings.Split(name, "_")
	if !strings.HasPrefix(name, "_") || len(segments) <= 2 {
		return ClassInvalid
	}

	prefix := segments[1]
	if _, ok := c.supported[prefix]; ok {
		return ClassInvalid
	}
	if _, ok := (*c.known.Load())[prefix]; !ok {
		return ClassUnknownProvider
	}
	return ClassOK
}

// Check classifies names, hands the notices to sink and then returns the
// *InvalidParameterError, if any. Notices are delivered even when an error is returned.
// sink may be nil.
func (c *Classifier) Check(names []string, params *ParamSet, sink NoticeSink) error {
	res := c.Classify(names, params)
	if sink != nil {
		for _, n := range res.Notices() {
			sink.Notify(n)
		}
	}
	return res.Err()
}

// Names returns the keys of a url.Values-like map in sorted order, so classification of
// a request is deterministic.
func Names[V any](values map[string]V) []string {
	names := lo.Keys(values)
	sort.Strings(names)
	return names
}

func toSet(values []string) map[string]struct{} {
	return lo.SliceToMap(values, func(v string) (string, struct{}) {
		return v, struct{}{}
	})
}
