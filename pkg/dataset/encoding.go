package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

type document struct {
	Name   string     `json:"name"`
	Tables []tableDoc `json:"tables"`
}

type tableDoc struct {
	Name    string      `json:"name"`
	Columns []columnDoc `json:"columns"`
	Rows    [][]any     `json:"rows"`
}

type columnDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// converters coerce decoded JSON cells back to their column types.
var converters = map[reflect.Kind]func(any) (any, error){
	reflect.Bool:    func(v any) (any, error) { return cast.ToBoolE(v) },
	reflect.Int:     func(v any) (any, error) { return cast.ToIntE(v) },
	reflect.Int8:    func(v any) (any, error) { return cast.ToInt8E(v) },
	reflect.Int16:   func(v any) (any, error) { return cast.ToInt16E(v) },
	reflect.Int32:   func(v any) (any, error) { return cast.ToInt32E(v) },
	reflect.Int64:   func(v any) (any, error) { return cast.ToInt64E(v) },
	reflect.Uint:    func(v any) (any, error) { return cast.ToUintE(v) },
	reflect.Uint8:   func(v any) (any, error) { return cast.ToUint8E(v) },
	reflect.Uint16:  func(v any) (any, error) { return cast.ToUint16E(v) },
	reflect.Uint32:  func(v any) (any, error) { return cast.ToUint32E(v) },
	reflect.Uint64:  func(v any) (any, error) { return cast.ToUint64E(v) },
	reflect.Float32: func(v any) (any, error) { return cast.ToFloat32E(v) },
	reflect.Float64: func(v any) (any, error) { return cast.ToFloat64E(v) },
	reflect.String:  func(v any) (any, error) { return cast.ToStringE(v) },
}

// TypeByName returns the column type for a type name such as "int64", or
// nil if the name is not supported.
func TypeByName(name string) reflect.Type {
	for kind := range converters {
		t := kindType(kind)
		if t.String() == name {
			return t
		}
	}
	return nil
}

func kindType(kind reflect.Kind) reflect.Type {
	switch kind {
	case reflect.Bool:
		return reflect.TypeOf(false)
	case reflect.Int:
		return reflect.TypeOf(int(0))
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Int16:
		return reflect.TypeOf(int16(0))
	case reflect.Int32:
		return reflect.TypeOf(int32(0))
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Uint:
		return reflect.TypeOf(uint(0))
	case reflect.Uint8:
		return reflect.TypeOf(uint8(0))
	case reflect.Uint16:
		return reflect.TypeOf(uint16(0))
	case reflect.Uint32:
		return reflect.TypeOf(uint32(0))
	case reflect.Uint64:
		return reflect.TypeOf(uint64(0))
	case reflect.Float32:
		return reflect.TypeOf(float32(0))
	case reflect.Float64:
		return reflect.TypeOf(float64(0))
	default:
		return reflect.TypeOf("")
	}
}

// Convert coerces v to the column type typ. Only the basic kinds listed
// by TypeByName are supported. Text is read as decimal for numeric
// columns, so "010" is ten and the full uint64 range is accepted.
func Convert(v any, typ reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	conv, ok := converters[typ.Kind()]
	if !ok {
		return nil, fmt.Errorf("unsupported column type %s", typ)
	}
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	if s, ok := v.(string); ok && IsNumeric(typ) {
		return ParseDecimal(s, typ)
	}
	return conv(v)
}

// IsNumeric reports whether typ is an integer or floating point kind.
func IsNumeric(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// ParseDecimal parses base 10 text into a value of the numeric type typ.
// Values out of range for typ are an error.
func ParseDecimal(s string, typ reflect.Type) (any, error) {
	s = strings.TrimSpace(s)
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, typ.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(typ).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, typ.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(typ).Interface(), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, typ.Bits())
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(f).Convert(typ).Interface(), nil
	}
	return nil, fmt.Errorf("%s is not a numeric type", typ)
}

// Encode writes d as an indented JSON document.
func Encode(w io.Writer, d *DataSet) error {
	doc := document{Name: d.name, Tables: make([]tableDoc, 0, len(d.tables))}
	for _, t := range d.tables {
		td := tableDoc{
			Name:    t.name,
			Columns: make([]columnDoc, 0, len(t.columns)),
			Rows:    make([][]any, 0, len(t.rows)),
		}
		for _, c := range t.columns {
			if _, ok := converters[c.Type.Kind()]; !ok {
				return fmt.Errorf("table %q column %q: unsupported type %s", t.name, c.Name, c.Type)
			}
			td.Columns = append(td.Columns, columnDoc{Name: c.Name, Type: kindType(c.Type.Kind()).String()})
		}
		for _, r := range t.rows {
			td.Rows = append(td.Rows, []any(r))
		}
		doc.Tables = append(doc.Tables, td)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a JSON document written by Encode. Cells are coerced back
// to their declared column types.
func Decode(r io.Reader) (*DataSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse data set: %w", err)
	}

	d := New(doc.Name)
	for _, td := range doc.Tables {
		t, err := d.AddTable(td.Name)
		if err != nil {
			return nil, err
		}
		for _, cd := range td.Columns {
			typ := TypeByName(cd.Type)
			if typ == nil {
				return nil, fmt.Errorf("table %q column %q: unknown type %q", td.Name, cd.Name, cd.Type)
			}
			if _, err := t.AddColumn(cd.Name, typ); err != nil {
				return nil, err
			}
		}
		for i, raw := range td.Rows {
			if len(raw) != len(t.columns) {
				return nil, fmt.Errorf("%w: table %q row %d", ErrRowShape, td.Name, i)
			}
			row := make([]any, len(raw))
			for j, cell := range raw {
				v, err := Convert(cell, t.columns[j].Type)
				if err != nil {
					return nil, fmt.Errorf("table %q row %d column %q: %w", td.Name, i, t.columns[j].Name, err)
				}
				row[j] = v
			}
			if err := t.AddRow(row...); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// Marshal returns the JSON encoding of d.
func Marshal(d *DataSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
