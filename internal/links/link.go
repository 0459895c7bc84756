// Package links holds the link resources served by the index meta-database
package links

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// ResourceType is the JSON:API type of every link resource
const ResourceType = "links"

// LinkType tells clients how a linked database relates to this one
type LinkType string

// Link types defined by OPTIMADE
const (
	LinkTypeChild     LinkType = "child"
	LinkTypeRoot      LinkType = "root"
	LinkTypeExternal  LinkType = "external"
	LinkTypeProviders LinkType = "providers"
)

// Valid reports whether t is one of the defined link types
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeChild, LinkTypeRoot, LinkTypeExternal, LinkTypeProviders:
		return true
	}
	return false
}

// Link is a link resource in its flat file form
type Link struct {
	ID          string   `json:"id" yaml:"id"`
	Type        string   `json:"type" yaml:"type"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	BaseURL     *string  `json:"base_url" yaml:"base_url"`
	Homepage    *string  `json:"homepage" yaml:"homepage"`
	LinkType    LinkType `json:"link_type" yaml:"link_type"`
	Aggregate   string   `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	NoAggregate string   `json:"no_aggregate_reason,omitempty" yaml:"no_aggregate_reason,omitempty"`
}

// Attributes returns the JSON:API attributes of the link
func (l *Link) Attributes() map[string]any {
	attrs := map[string]any{
		"name":        l.Name,
		"description": l.Description,
		"base_url":    l.BaseURL,
		"homepage":    l.Homepage,
		"link_type":   l.LinkType,
	}
	if l.Aggregate != "" {
		attrs["aggregate"] = l.Aggregate
	}
	if l.NoAggregate != "" {
		attrs["no_aggregate_reason"] = l.NoAggregate
	}
	return attrs
}

func (l *Link) validate() error {
	var errs []error
	if l.ID == "" {
		errs = append(errs, fmt.Errorf("id is required"))
	}
	if l.Type != "" && l.Type != ResourceType {
		errs = append(errs, fmt.Errorf("type must be %q, got %q", ResourceType, l.Type))
	}
	if !l.LinkType.Valid() {
		errs = append(errs, fmt.Errorf("invalid link_type %q", l.LinkType))
	}
	return errors.Join(errs...)
}

// resource is the JSON:API form used by the providers list
type resource struct {
	ID         string `json:"id" yaml:"id"`
	Type       string `json:"type" yaml:"type"`
	Attributes Link   `json:"attributes" yaml:"attributes"`
}

type document struct {
	Data []resource `json:"data" yaml:"data"`
}

// Decode parses link resources. name selects the format: .yaml and .yml files are YAML,
// anything else is JSON, comments and trailing commas allowed. Both a flat list of links
// and a JSON:API document with a data array are accepted.
func Decode(name string, data []byte) ([]Link, error) {
	var (
		links []Link
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		links, err = decodeYAML(data)
	default:
		links, err = decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(links))
	for i := range links {
		if err := links[i].validate(); err != nil {
			return nil, fmt.Errorf("link %d (%q): %w", i, links[i].ID, err)
		}
		if _, dup := seen[links[i].ID]; dup {
			return nil, fmt.Errorf("duplicate link id %q", links[i].ID)
		}
		seen[links[i].ID] = struct{}{}
		links[i].Type = ResourceType
	}
	return links, nil
}

func decodeJSON(data []byte) ([]Link, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if trimmed := bytes.TrimSpace(std); len(trimmed) > 0 && trimmed[0] == '[' {
		var links []Link
		if err := json.Unmarshal(std, &links); err != nil {
			return nil, fmt.Errorf("failed to decode links: %w", err)
		}
		return links, nil
	}

	var doc document
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode links document: %w", err)
	}
	return fromResources(doc.Data), nil
}

func decodeYAML(data []byte) ([]Link, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var links []Link
		if err := node.Decode(&links); err != nil {
			return nil, fmt.Errorf("failed to decode links: %w", err)
		}
		return links, nil
	}

	var doc document
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode links document: %w", err)
	}
	return fromResources(doc.Data), nil
}

func fromResources(resources []resource) []Link {
	links := make([]Link, len(resources))
	for i, r := range resources {
		links[i] = r.Attributes
		links[i].ID = r.ID
		links[i].Type = r.Type
	}
	return links
}
