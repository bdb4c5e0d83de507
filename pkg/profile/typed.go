package profile

import (
	"reflect"

	"github.com/spf13/cast"

	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

// Primitive lists the result types supported by GetValue.
type Primitive interface {
	bool | int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// GetValue returns the value of entry inside section coerced to T.
//
// Coercion is best effort: if the entry is absent or its value cannot be
// converted, the zero value of T is returned with a nil error. Errors are
// only returned for state and argument violations or backend failures.
// Numbers convert to bool by comparison with zero. Text is parsed as
// decimal: "010" is 10, and "0x10" does not convert.
func GetValue[T Primitive](p ReadOnlyProfile, section, entry string) (T, error) {
	var zero T
	value, err := p.Value(section, entry)
	if err != nil || value == nil {
		return zero, err
	}

	result, ok := coerce[T](value)
	if !ok {
		return zero, nil
	}
	return result, nil
}

// GetValueOr is like GetValue but returns def when the entry does not
// exist. A present value that cannot be coerced still yields the zero value.
func GetValueOr[T Primitive](p ReadOnlyProfile, section, entry string, def T) (T, error) {
	value, err := p.Value(section, entry)
	if err != nil {
		var zero T
		return zero, err
	}
	if value == nil {
		return def, nil
	}

	result, _ := coerce[T](value)
	return result, nil
}

func coerce[T Primitive](value any) (T, bool) {
	var (
		zero   T
		result any
		err    error
	)

	text, isText := value.(string)
	if isText {
		if typ := reflect.TypeOf(zero); dataset.IsNumeric(typ) {
			parsed, err := dataset.ParseDecimal(text, typ)
			if err != nil {
				return zero, false
			}
			typed, ok := parsed.(T)
			return typed, ok
		}
	}

	switch any(zero).(type) {
	case bool:
		result, err = cast.ToBoolE(value)
		if err != nil {
			// Numeric values, and numeric text as stored by text backends,
			// compare with zero
			if isText {
				if f, ferr := dataset.ParseDecimal(text, reflect.TypeOf(float64(0))); ferr == nil {
					result, err = f.(float64) != 0, nil
				}
			} else if f, ferr := cast.ToFloat64E(value); ferr == nil {
				result, err = f != 0, nil
			}
		}
	case int:
		result, err = cast.ToIntE(value)
	case int8:
		result, err = cast.ToInt8E(value)
	case int16:
		result, err = cast.ToInt16E(value)
	case int32:
		result, err = cast.ToInt32E(value)
	case int64:
		result, err = cast.ToInt64E(value)
	case uint:
		result, err = cast.ToUintE(value)
	case uint8:
		result, err = cast.ToUint8E(value)
	case uint16:
		result, err = cast.ToUint16E(value)
	case uint32:
		result, err = cast.ToUint32E(value)
	case uint64:
		result, err = cast.ToUint64E(value)
	case float32:
		result, err = cast.ToFloat32E(value)
	case float64:
		result, err = cast.ToFloat64E(value)
	default:
		return zero, false
	}
	if err != nil {
		return zero, false
	}

	typed, ok := result.(T)
	return typed, ok
}
