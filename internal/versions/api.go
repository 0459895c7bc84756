package versions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// APIVersion is the OPTIMADE API version implemented by the server
const APIVersion = "1.2.0"

// hintPattern is the only accepted api_hint shape. Wildcards such as v1.x are rejected.
var hintPattern = regexp.MustCompile(`^v[0-9]+(\.[0-9]+)?$`)

// BaseURLPrefixes holds the versioned path prefixes under which the API is mounted
type BaseURLPrefixes struct {
	Major string
	Minor string
	Patch string
}

// All returns the prefixes from the shortest to the longest
func (p BaseURLPrefixes) All() []string {
	return []string{p.Major, p.Minor, p.Patch}
}

// PrefixesFor derives /vMAJOR, /vMAJOR.MINOR and /vMAJOR.MINOR.PATCH from a semantic version
func PrefixesFor(version string) (BaseURLPrefixes, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return BaseURLPrefixes{}, fmt.Errorf("invalid API version %q: %w", version, err)
	}
	return BaseURLPrefixes{
		Major: fmt.Sprintf("/v%d", v.Major()),
		Minor: fmt.Sprintf("/v%d.%d", v.Major(), v.Minor()),
		Patch: fmt.Sprintf("/v%d.%d.%d", v.Major(), v.Minor(), v.Patch()),
	}, nil
}

// APIPrefixes returns the base URL prefixes of APIVersion
func APIPrefixes() BaseURLPrefixes {
	p, err := PrefixesFor(APIVersion)
	if err != nil {
		panic(err)
	}
	return p
}

// HintSatisfied reports whether an api_hint of the form vMAJOR or vMAJOR.MINOR can be
// served by the given API version. An empty hint is always satisfied. A minor hint is
// satisfied by any equal or newer minor version of the same major.
func HintSatisfied(hint, apiVersion string) (bool, error) {
	if hint == "" {
		return true, nil
	}
	if !strings.HasPrefix(hint, "v") {
		return false, fmt.Errorf("api_hint %q must start with 'v'", hint)
	}
	if !hintPattern.MatchString(hint) {
		return false, fmt.Errorf("invalid api_hint %q: expected vMAJOR or vMAJOR.MINOR", hint)
	}
	constraint, err := semver.NewConstraint("^" + strings.TrimPrefix(hint, "v"))
	if err != nil {
		return false, fmt.Errorf("invalid api_hint %q: %w", hint, err)
	}
	v, err := semver.NewVersion(apiVersion)
	if err != nil {
		return false, fmt.Errorf("invalid API version %q: %w", apiVersion, err)
	}
	return constraint.Check(v), nil
}
