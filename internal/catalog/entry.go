package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// SourceUserProven marks entries promoted from the pattern ledger.
const SourceUserProven = "user-proven"

// Entry is one retrievable component snippet.
type Entry struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ComponentType string            `json:"component_type"`
	Category      string            `json:"category,omitempty"`
	Variant       string            `json:"variant,omitempty"`
	Description   string            `json:"description,omitempty"`
	Code          string            `json:"code"`
	Tags          []string          `json:"tags,omitempty"`
	Source        string            `json:"source,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SearchText is the text embedded for semantic retrieval of the entry.
func (e Entry) SearchText() string {
	text := e.Name
	if e.ComponentType != "" {
		text += " " + e.ComponentType
	}
	if e.Variant != "" {
		text += " " + e.Variant
	}
	if e.Description != "" {
		text += ": " + e.Description
	}
	return text
}

// LoadEntries reads a JSON array of entries from path.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
	}
	return entries, nil
}
