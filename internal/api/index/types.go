package index

// MediaType is the JSON:API media type used by every OPTIMADE response
const MediaType = "application/vnd.api+json"

// QueryMeta echoes the request in the response meta
type QueryMeta struct {
	Representation string `json:"representation"`
}

// ProviderMeta identifies the database provider
type ProviderMeta struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Prefix      string  `json:"prefix"`
	Homepage    *string `json:"homepage"`
}

// ImplementationMeta names the server software
type ImplementationMeta struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Warning is a non-fatal notice attached to meta.warnings
type Warning struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Meta is the top-level meta object
type Meta struct {
	Query             QueryMeta           `json:"query"`
	APIVersion        string              `json:"api_version"`
	MoreDataAvailable bool                `json:"more_data_available"`
	TimeStamp         string              `json:"time_stamp"`
	DataReturned      int                 `json:"data_returned"`
	DataAvailable     int                 `json:"data_available,omitempty"`
	Provider          ProviderMeta        `json:"provider"`
	Implementation    *ImplementationMeta `json:"implementation,omitempty"`
	Warnings          []Warning           `json:"warnings,omitempty"`
}

// Resource is a JSON:API resource object
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship points at one related resource
type Relationship struct {
	Data ResourceIdentifier `json:"data"`
}

// ResourceIdentifier names a resource without its attributes
type ResourceIdentifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Links is the top-level links object of a listing
type Links struct {
	Next *string `json:"next"`
}

// Document is a successful response. Data is a *Resource or a []Resource.
type Document struct {
	Data  any    `json:"data"`
	Meta  Meta   `json:"meta"`
	Links *Links `json:"links,omitempty"`
}

// ErrorObject is a JSON:API error
type ErrorObject struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ErrorDocument is a failed response
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
	Meta   Meta          `json:"meta"`
}
