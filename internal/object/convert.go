package object

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var (
	typeOfUUID       = reflect.TypeOf(UUID{})
	typeOfGoogleUUID = reflect.TypeOf(uuid.UUID{})
	typeOfBytes      = reflect.TypeOf([]byte{})
)

// Normalize converts a Go value into canonical message form: maps with
// string keys become Dict, slices and arrays become Array, integer kinds
// widen to int64, byte slices stay Data, UUIDs stay UUID. Values outside
// the message model return an error.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

func normalizeValue(val reflect.Value) (any, error) {
	if !val.IsValid() {
		return nil, nil
	}

	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(val.Uint()), nil

	case reflect.String:
		return val.String(), nil

	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("normalize: map key type %s not supported", val.Type().Key())
		}
		d := make(Dict, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			nv, err := normalizeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			d[iter.Key().String()] = nv
		}
		return d, nil

	case reflect.Array:
		if val.Type() == typeOfUUID {
			return val.Interface().(UUID), nil
		}
		if val.Type() == typeOfGoogleUUID {
			return UUID(val.Interface().(uuid.UUID)), nil
		}
		return normalizeSequence(val)

	case reflect.Slice:
		if val.Type() == typeOfBytes || val.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(out), val)
			return out, nil
		}
		return normalizeSequence(val)

	case reflect.Interface, reflect.Pointer:
		if val.IsNil() {
			return nil, nil
		}
		if err, ok := val.Interface().(error); ok {
			return err, nil
		}
		return normalizeValue(val.Elem())

	default:
		if err, ok := val.Interface().(error); ok {
			return err, nil
		}
		return nil, fmt.Errorf("normalize: unsupported value of type %s", val.Type())
	}
}

func normalizeSequence(val reflect.Value) (any, error) {
	out := make(Array, val.Len())
	for i := 0; i < val.Len(); i++ {
		nv, err := normalizeValue(val.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}
