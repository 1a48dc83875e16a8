package types

import "time"

// SystemJSON is a named, searchable structured document holding data,
// instructions or workflows for a domain.
type SystemJSON struct {
	Name        string      `json:"name"`
	Domain      string      `json:"domain"`
	Description string      `json:"description"`
	Data        interface{} `json:"data"`
	Tags        []string    `json:"tags,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SystemJSONSummary is the listing form of a SystemJSON document.
type SystemJSONSummary struct {
	Name        string   `json:"name"`
	Domain      string   `json:"domain"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Summary returns the listing form of d.
func (d *SystemJSON) Summary() SystemJSONSummary {
	return SystemJSONSummary{
		Name:        d.Name,
		Domain:      d.Domain,
		Description: d.Description,
		Tags:        d.Tags,
	}
}

// LibraryInfo describes one stored library.
type LibraryInfo struct {
	Name         string    `json:"name"`
	NodeCount    int       `json:"nodeCount"`
	LastModified time.Time `json:"lastModified"`
	Current      bool      `json:"current"`
}
