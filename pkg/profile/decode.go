package profile

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeSection decodes the entries of section into out, which must be a
// pointer to a struct or map. Field names match entry names case
// insensitively, or via `profile:"name"` tags; values are weakly typed,
// so "8080" decodes into an int field. A missing section decodes nothing.
func (p *Profile) DecodeSection(section string, out any) error {
	entries, err := p.EntryNames(section)
	if err != nil {
		return err
	}

	values := make(map[string]any, len(entries))
	for _, entry := range entries {
		value, err := p.Value(section, entry)
		if err != nil {
			return err
		}
		if value != nil {
			values[entry] = value
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "profile",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("failed to decode section %q: %w", section, err)
	}
	return nil
}
