package storage

import "slices"

// Document is an ordered, in-memory profile: sections and entries keep
// the order in which they were first written.
type Document struct {
	sections []*Section
}

// Section is a named, ordered list of entries.
type Section struct {
	Name    string
	Entries []Entry
}

// Entry is a single named value.
type Entry struct {
	Name  string
	Value any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Sections returns the sections in order. Callers must not modify them.
func (d *Document) Sections() []*Section {
	return d.sections
}

// SectionNames returns the section names. The result is never nil.
func (d *Document) SectionNames() []string {
	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.Name)
	}
	return names
}

// EntryNames returns the entry names of section, or nil if the section
// does not exist.
func (d *Document) EntryNames(section string) []string {
	s := d.section(section)
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		names = append(names, e.Name)
	}
	return names
}

// Value returns the value of entry in section, or nil.
func (d *Document) Value(section, entry string) any {
	s := d.section(section)
	if s == nil {
		return nil
	}
	if i := s.index(entry); i >= 0 {
		return s.Entries[i].Value
	}
	return nil
}

// Set writes value, creating the section if needed. A nil value removes
// the entry but keeps the section.
func (d *Document) Set(section, entry string, value any) {
	if value == nil {
		d.RemoveEntry(section, entry)
		return
	}

	s := d.section(section)
	if s == nil {
		s = &Section{Name: section}
		d.sections = append(d.sections, s)
	}
	if i := s.index(entry); i >= 0 {
		s.Entries[i].Value = value
		return
	}
	s.Entries = append(s.Entries, Entry{Name: entry, Value: value})
}

// AddSection appends an empty section if it does not exist yet.
func (d *Document) AddSection(section string) {
	if d.section(section) == nil {
		d.sections = append(d.sections, &Section{Name: section})
	}
}

// RemoveEntry deletes entry from section if present.
func (d *Document) RemoveEntry(section, entry string) {
	s := d.section(section)
	if s == nil {
		return
	}
	if i := s.index(entry); i >= 0 {
		s.Entries = slices.Delete(s.Entries, i, i+1)
	}
}

// RemoveSection deletes section if present.
func (d *Document) RemoveSection(section string) {
	d.sections = slices.DeleteFunc(d.sections, func(s *Section) bool {
		return s.Name == section
	})
}

// Clone returns a deep copy of the document structure. Values are copied
// by assignment.
func (d *Document) Clone() *Document {
	c := &Document{sections: make([]*Section, 0, len(d.sections))}
	for _, s := range d.sections {
		c.sections = append(c.sections, &Section{
			Name:    s.Name,
			Entries: slices.Clone(s.Entries),
		})
	}
	return c
}

func (d *Document) section(name string) *Section {
	for _, s := range d.sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (s *Section) index(entry string) int {
	return slices.IndexFunc(s.Entries, func(e Entry) bool {
		return e.Name == entry
	})
}
