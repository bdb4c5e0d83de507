package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/keeper-security/ksm-profile/internal/crypto"
	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

// ErrLocked is returned when an encrypted profile file is read without a
// master password.
var ErrLocked = errors.New("profile file is encrypted and no master password was given")

// jsonFormatVersion is the current on-disk format version
const jsonFormatVersion = 1

// JSONCodec stores a profile as JSON, optionally sealed with a master
// password. Value types are recorded next to each value so integers and
// floats keep their exact type.
type JSONCodec struct {
	sealer *crypto.Sealer
}

// NewJSONCodec returns a plaintext JSON codec when sealer is nil and an
// encrypted one otherwise.
func NewJSONCodec(sealer *crypto.Sealer) *JSONCodec {
	return &JSONCodec{sealer: sealer}
}

// profileFile is the on-disk envelope
type profileFile struct {
	Version   int             `json:"version"`
	Encrypted bool            `json:"encrypted"`
	Payload   json.RawMessage `json:"payload"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type sectionRecord struct {
	Name    string        `json:"name"`
	Entries []entryRecord `json:"entries"`
}

type entryRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Extension returns ".json"
func (c *JSONCodec) Extension() string { return ".json" }

// Encode serializes doc, sealing the payload when a master password is set
func (c *JSONCodec) Encode(doc *Document) ([]byte, error) {
	records := make([]sectionRecord, 0, len(doc.Sections()))
	for _, s := range doc.Sections() {
		rec := sectionRecord{Name: s.Name, Entries: make([]entryRecord, 0, len(s.Entries))}
		for _, e := range s.Entries {
			typ := reflect.TypeOf(e.Value)
			if dataset.TypeByName(typ.String()) == nil {
				return nil, fmt.Errorf("entry %s/%s: unsupported value type %s", s.Name, e.Name, typ)
			}
			rec.Entries = append(rec.Entries, entryRecord{Name: e.Name, Type: typ.String(), Value: e.Value})
		}
		records = append(records, rec)
	}

	plaintext, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sections: %w", err)
	}

	file := profileFile{
		Version:   jsonFormatVersion,
		Payload:   plaintext,
		Checksum:  crypto.Checksum(plaintext),
		UpdatedAt: time.Now().UTC(),
	}

	if c.sealer != nil {
		sealed, err := c.sealer.Seal(plaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt profile: %w", err)
		}
		quoted, err := json.Marshal(sealed)
		if err != nil {
			return nil, err
		}
		file.Encrypted = true
		file.Payload = quoted
	}

	return json.MarshalIndent(file, "", "  ")
}

// Decode parses a file written by Encode
func (c *JSONCodec) Decode(data []byte) (*Document, error) {
	var file profileFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if file.Version != jsonFormatVersion {
		return nil, fmt.Errorf("unsupported profile file version %d", file.Version)
	}

	var plaintext []byte
	if file.Encrypted {
		if c.sealer == nil {
			return nil, ErrLocked
		}
		var sealed string
		if err := json.Unmarshal(file.Payload, &sealed); err != nil {
			return nil, fmt.Errorf("failed to read encrypted payload: %w", err)
		}
		opened, err := c.sealer.Open(sealed)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt profile: %w", err)
		}
		plaintext = opened
	} else {
		// The payload was re-indented when the envelope was written
		var buf bytes.Buffer
		if err := json.Compact(&buf, file.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		plaintext = buf.Bytes()
	}

	// Verify checksum for integrity
	if file.Checksum != crypto.Checksum(plaintext) {
		return nil, fmt.Errorf("profile file has an invalid checksum, data may be corrupted")
	}

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.UseNumber()
	var records []sectionRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to deserialize sections: %w", err)
	}

	doc := NewDocument()
	for _, rec := range records {
		doc.AddSection(rec.Name)
		for _, e := range rec.Entries {
			typ := dataset.TypeByName(e.Type)
			if typ == nil {
				return nil, fmt.Errorf("entry %s/%s: unknown type %q", rec.Name, e.Name, e.Type)
			}
			value, err := dataset.Convert(e.Value, typ)
			if err != nil {
				return nil, fmt.Errorf("entry %s/%s: %w", rec.Name, e.Name, err)
			}
			doc.Set(rec.Name, e.Name, value)
		}
	}
	return doc, nil
}
