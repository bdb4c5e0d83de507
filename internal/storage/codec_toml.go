package storage

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// TOMLCodec stores each section as a TOML table. TOML tables are
// unordered, so sections and entries are loaded in sorted order.
type TOMLCodec struct{}

// Extension returns ".toml"
func (TOMLCodec) Extension() string { return ".toml" }

// Decode parses TOML data
func (TOMLCodec) Decode(data []byte) (*Document, error) {
	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, err
	}

	doc := NewDocument()
	for _, sectionName := range sortedKeys(tables) {
		body, ok := tables[sectionName].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("top-level key %q is not inside a table", sectionName)
		}
		doc.AddSection(sectionName)
		for _, entryName := range sortedKeys(body) {
			doc.Set(sectionName, entryName, body[entryName])
		}
	}
	return doc, nil
}

// Encode renders doc as TOML
func (TOMLCodec) Encode(doc *Document) ([]byte, error) {
	tables := make(map[string]map[string]any, len(doc.Sections()))
	for _, s := range doc.Sections() {
		body := make(map[string]any, len(s.Entries))
		for _, e := range s.Entries {
			body[e.Name] = e.Value
		}
		tables[s.Name] = body
	}
	return toml.Marshal(tables)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
