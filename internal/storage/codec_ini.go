package storage

import (
	"bytes"
	"fmt"

	"github.com/spf13/cast"
	"gopkg.in/ini.v1"
)

// IniCodec reads and writes INI files. All values are stored as strings.
// Entries outside any section are ignored.
type IniCodec struct{}

var iniOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	// Values such as Windows paths may end in a backslash
	IgnoreContinuation: true,
}

// Extension returns ".ini"
func (IniCodec) Extension() string { return ".ini" }

// Decode parses INI data
func (IniCodec) Decode(data []byte) (*Document, error) {
	cfg, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, err
	}

	doc := NewDocument()
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		doc.AddSection(sec.Name())
		for _, key := range sec.Keys() {
			doc.Set(sec.Name(), key.Name(), key.Value())
		}
	}
	return doc, nil
}

// Encode renders doc as INI
func (IniCodec) Encode(doc *Document) ([]byte, error) {
	cfg := ini.Empty(iniOptions)
	for _, s := range doc.Sections() {
		sec, err := cfg.NewSection(s.Name)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		for _, e := range s.Entries {
			value, err := cast.ToStringE(e.Value)
			if err != nil {
				return nil, fmt.Errorf("entry %s/%s: %w", s.Name, e.Name, err)
			}
			if _, err := sec.NewKey(e.Name, value); err != nil {
				return nil, fmt.Errorf("entry %s/%s: %w", s.Name, e.Name, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, err
	}
	if err := verifyIni(buf.Bytes(), doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// verifyIni reads data back and checks every value survived. The INI
// quoting rules cannot express some strings, for example one holding
// both a newline and a triple quote, and writing those would leave a
// file that no longer parses.
func verifyIni(data []byte, doc *Document) error {
	cfg, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValueNotRepresentable, err)
	}
	for _, s := range doc.Sections() {
		sec, err := cfg.GetSection(s.Name)
		if err != nil {
			return fmt.Errorf("%w: section %q: %v", ErrValueNotRepresentable, s.Name, err)
		}
		for _, e := range s.Entries {
			want := cast.ToString(e.Value)
			key, err := sec.GetKey(e.Name)
			if err != nil || key.Value() != want {
				return fmt.Errorf("%w: entry %s/%s value %q", ErrValueNotRepresentable, s.Name, e.Name, want)
			}
		}
	}
	return nil
}
