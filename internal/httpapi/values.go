package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/keeper-security/ksm-profile/pkg/dataset"
	"github.com/keeper-security/ksm-profile/pkg/types"
)

// decodeValue turns a write request into a Go value. Without an explicit
// type, integral numbers become int64 and other numbers float64. A JSON
// null yields nil, which removes the entry.
func decodeValue(req types.SetValueRequest) (any, error) {
	raw := bytes.TrimSpace(req.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if req.Type != "" {
		typ := dataset.TypeByName(req.Type)
		if typ == nil {
			return nil, fmt.Errorf("%w: unsupported type %q", errBadRequest, req.Type)
		}
		converted, err := dataset.Convert(v, typ)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return converted, nil
	}

	switch tv := v.(type) {
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return f, nil
	case string, bool:
		return tv, nil
	default:
		return nil, fmt.Errorf("%w: value must be a string, number or boolean", errBadRequest)
	}
}
