package object

import "encoding/hex"

// Dict is a dictionary-typed message value.
type Dict map[string]any

// Apply invokes visit once per entry until it returns false. Iteration
// order is unspecified. It returns the number of entries visited.
func (d Dict) Apply(visit func(key string, value any) bool) int {
	n := 0
	for k, v := range d {
		n++
		if !visit(k, v) {
			break
		}
	}
	return n
}

// Contains reports whether the key is present.
func (d Dict) Contains(k string) bool {
	_, ok := d[k]
	return ok
}

// GetString returns the string at k, or defv when absent or not a string.
func (d Dict) GetString(k, defv string) string {
	if v, ok := d[k].(string); ok {
		return v
	}
	return defv
}

// GetInt returns the integer at k, or defv when absent or not an int64.
func (d Dict) GetInt(k string, defv int) int {
	if v, ok := d[k].(int64); ok {
		return int(v)
	}
	return defv
}

// GetBytes returns the byte buffer at k, or defv when absent or not data.
func (d Dict) GetBytes(k string, defv []byte) []byte {
	if v, ok := d[k].([]byte); ok {
		return v
	}
	return defv
}

// GetUUID returns the UUID at k, converting raw bytes when needed. A
// missing or incompatible value yields the zero UUID.
func (d Dict) GetUUID(k string) UUID {
	return AsUUID(d[k])
}

// MustGetDict returns the nested dictionary at k, panicking on a type
// mismatch. Use it for protocol fields that are dictionaries by contract.
func (d Dict) MustGetDict(k string) Dict {
	return d[k].(Dict)
}

// MustGetArray returns the nested array at k, panicking on mismatch.
func (d Dict) MustGetArray(k string) Array {
	return d[k].(Array)
}

// MustGetBytes returns the byte buffer at k, panicking on mismatch.
func (d Dict) MustGetBytes(k string) []byte {
	return d[k].([]byte)
}

// MustGetHexBytes returns the byte buffer at k hex-encoded.
func (d Dict) MustGetHexBytes(k string) string {
	return hex.EncodeToString(d[k].([]byte))
}

// MustGetInt returns the integer at k, panicking on mismatch.
func (d Dict) MustGetInt(k string) int {
	return int(d[k].(int64))
}

// MustGetUUID returns the UUID at k, panicking on mismatch.
func (d Dict) MustGetUUID(k string) UUID {
	return d[k].(UUID)
}
