package object

import "github.com/google/uuid"

// Type identifies the runtime type of a message value. The package
// exposes one singleton token per supported type; callers compare tokens
// with ==, never by value.
type Type struct {
	name string
}

func (t *Type) String() string {
	if t == nil {
		return "<invalid>"
	}
	return t.name
}

var (
	TypeError  = &Type{name: "error"}
	TypeArray  = &Type{name: "array"}
	TypeData   = &Type{name: "data"}
	TypeDict   = &Type{name: "dictionary"}
	TypeInt64  = &Type{name: "int64"}
	TypeString = &Type{name: "string"}
	TypeUUID   = &Type{name: "uuid"}
)

// Types enumerates every token in a stable order.
func Types() []*Type {
	return []*Type{TypeError, TypeArray, TypeData, TypeDict, TypeInt64, TypeString, TypeUUID}
}

// TypeOf classifies a message value. Values outside the message model
// yield nil; integer kinds narrower than int64 classify as TypeInt64
// because Normalize widens them.
func TypeOf(v any) *Type {
	switch v.(type) {
	case nil:
		return nil
	case error:
		return TypeError
	case Array, []any:
		return TypeArray
	case []byte:
		return TypeData
	case Dict, map[string]any:
		return TypeDict
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return TypeInt64
	case string:
		return TypeString
	case UUID, uuid.UUID:
		return TypeUUID
	default:
		return nil
	}
}
