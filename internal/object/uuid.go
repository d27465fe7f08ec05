package object

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUID is the 16-byte uuid message value. It renders as bare hex to
// match the wire representation used by peers; Canonical returns the
// dashed RFC 4122 form.
type UUID uuid.UUID

// NewUUID returns a random UUID.
func NewUUID() UUID {
	return UUID(uuid.New())
}

// ParseUUID accepts the canonical dashed form or 32 bare hex digits.
func ParseUUID(s string) (UUID, error) {
	if parsed, err := uuid.Parse(s); err == nil {
		return UUID(parsed), nil
	}
	cleaned := strings.ReplaceAll(s, "-", "")
	if len(cleaned) != 32 {
		return UUID{}, fmt.Errorf("parse uuid %q: need 32 hex digits", s)
	}
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return UUID{}, fmt.Errorf("parse uuid %q: %w", s, err)
	}
	var u UUID
	copy(u[:], raw)
	return u, nil
}

// MustUUID parses s and panics on failure. Intended for protocol
// constants known at compile time.
func MustUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UUIDFromBytes copies up to 16 bytes into a UUID.
func UUIDFromBytes(b []byte) UUID {
	var u UUID
	copy(u[:], b)
	return u
}

// AsUUID converts a message value to a UUID: UUIDs pass through, byte
// buffers are copied, anything else yields the zero UUID.
func AsUUID(v any) UUID {
	switch val := v.(type) {
	case UUID:
		return val
	case uuid.UUID:
		return UUID(val)
	case []byte:
		return UUIDFromBytes(val)
	default:
		return UUID{}
	}
}

func (u UUID) Bytes() []byte {
	return u[:]
}

func (u UUID) String() string {
	return hex.EncodeToString(u[:])
}

// Canonical returns the dashed RFC 4122 representation.
func (u UUID) Canonical() string {
	return uuid.UUID(u).String()
}
