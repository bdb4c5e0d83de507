package storage

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLCodec stores a profile as a two-level YAML mapping. Scalar types
// survive a round trip and mapping order is preserved.
type YAMLCodec struct{}

// Extension returns ".yaml"
func (YAMLCodec) Extension() string { return ".yaml" }

// Decode parses YAML data
func (YAMLCodec) Decode(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	doc := NewDocument()
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of sections", top.Line)
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		sectionName, body := top.Content[i].Value, top.Content[i+1]
		doc.AddSection(sectionName)

		if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: section %q must be a mapping", body.Line, sectionName)
		}

		for j := 0; j+1 < len(body.Content); j += 2 {
			entryName := body.Content[j].Value
			var value any
			if err := body.Content[j+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("entry %s/%s: %w", sectionName, entryName, err)
			}
			doc.Set(sectionName, entryName, value)
		}
	}
	return doc, nil
}

// Encode renders doc as YAML
func (YAMLCodec) Encode(doc *Document) ([]byte, error) {
	top := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range doc.Sections() {
		body := &yaml.Node{Kind: yaml.MappingNode}
		for _, e := range s.Entries {
			value := &yaml.Node{}
			if err := value.Encode(e.Value); err != nil {
				return nil, fmt.Errorf("entry %s/%s: %w", s.Name, e.Name, err)
			}
			body.Content = append(body.Content, scalar(e.Name), value)
		}
		top.Content = append(top.Content, scalar(s.Name), body)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
