package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"msgport/internal/object"
)

// Limits bound what the decoder will accept from a peer.
type Limits struct {
	// MaxFrameBytes caps the encoded payload size.
	MaxFrameBytes int
	// MaxObjectDepth caps nesting of dictionaries and arrays.
	MaxObjectDepth int
}

// DefaultLimits match the daemon's configuration defaults.
func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 4 << 20, MaxObjectDepth: 32}
}

func (l Limits) normalized() Limits {
	out := l
	if out.MaxFrameBytes <= 0 {
		out.MaxFrameBytes = DefaultLimits().MaxFrameBytes
	}
	if out.MaxObjectDepth <= 0 {
		out.MaxObjectDepth = DefaultLimits().MaxObjectDepth
	}
	return out
}

// ErrFrameTooLarge indicates a peer announced a payload beyond limits.
var ErrFrameTooLarge = errors.New("wire: frame exceeds size limit")

// ErrObjectTooDeep indicates object nesting beyond limits.
var ErrObjectTooDeep = errors.New("wire: object exceeds depth limit")

const (
	tagNil uint8 = iota
	tagDict
	tagArray
	tagData
	tagInt64
	tagString
	tagUUID
	tagError
)

// WriteFrame encodes f and writes it as one length-prefixed record.
// The body is normalized into canonical message form first.
func WriteFrame(w io.Writer, f *Frame, limits Limits) error {
	limits = limits.normalized()

	var payload bytes.Buffer
	payload.WriteByte(byte(f.Kind))
	payload.Write(f.ID[:])
	payload.WriteByte(byte(f.Code))
	if err := writeString(&payload, f.Service); err != nil {
		return err
	}
	if err := writeString(&payload, f.Detail); err != nil {
		return err
	}

	body, err := object.Normalize(f.Body)
	if err != nil {
		return fmt.Errorf("wire: encode body: %w", err)
	}
	if err := encodeValue(&payload, body, 0, limits.MaxObjectDepth); err != nil {
		return err
	}

	if payload.Len() > limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}
	f.Size = payload.Len()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(payload.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload.Bytes())
	return err
}

// ReadFrame reads one length-prefixed record and decodes it.
func ReadFrame(r io.Reader, limits Limits) (*Frame, error) {
	limits = limits.normalized()

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > uint32(limits.MaxFrameBytes) {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(payload)
	kind, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read kind: %w", err)
	}
	f := &Frame{Kind: Kind(kind), Size: len(payload)}
	if _, err := io.ReadFull(buf, f.ID[:]); err != nil {
		return nil, fmt.Errorf("wire: read id: %w", err)
	}
	code, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read code: %w", err)
	}
	f.Code = ErrorCode(code)
	if f.Service, err = readString(buf); err != nil {
		return nil, err
	}
	if f.Detail, err = readString(buf); err != nil {
		return nil, err
	}
	if f.Body, err = decodeValue(buf, 0, limits.MaxObjectDepth); err != nil {
		return nil, err
	}
	return f, nil
}

func encodeValue(buf *bytes.Buffer, v any, depth, maxDepth int) error {
	if depth > maxDepth {
		return ErrObjectTooDeep
	}

	switch val := v.(type) {
	case nil:
		buf.WriteByte(tagNil)
		return nil

	case object.Dict:
		buf.WriteByte(tagDict)
		writeCount(buf, len(val))
		for k, item := range val {
			if err := writeString(buf, k); err != nil {
				return err
			}
			if err := encodeValue(buf, item, depth+1, maxDepth); err != nil {
				return err
			}
		}
		return nil

	case object.Array:
		buf.WriteByte(tagArray)
		writeCount(buf, len(val))
		for _, item := range val {
			if err := encodeValue(buf, item, depth+1, maxDepth); err != nil {
				return err
			}
		}
		return nil

	case []byte:
		buf.WriteByte(tagData)
		writeCount(buf, len(val))
		buf.Write(val)
		return nil

	case int64:
		buf.WriteByte(tagInt64)
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], uint64(val))
		buf.Write(scratch[:])
		return nil

	case string:
		buf.WriteByte(tagString)
		return writeString(buf, val)

	case object.UUID:
		buf.WriteByte(tagUUID)
		buf.Write(val[:])
		return nil

	case error:
		buf.WriteByte(tagError)
		return writeString(buf, val.Error())

	default:
		return fmt.Errorf("wire: cannot encode value of type %T", v)
	}
}

func decodeValue(buf *bytes.Buffer, depth, maxDepth int) (any, error) {
	if depth > maxDepth {
		return nil, ErrObjectTooDeep
	}

	tag, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read tag: %w", err)
	}

	switch tag {
	case tagNil:
		return nil, nil

	case tagDict:
		count, err := readCount(buf)
		if err != nil {
			return nil, err
		}
		// Every entry costs at least a 2-byte key length and a value tag.
		if count > buf.Len()/3 {
			return nil, fmt.Errorf("wire: dict count %d exceeds remaining payload", count)
		}
		d := make(object.Dict, count)
		for i := 0; i < count; i++ {
			key, err := readString(buf)
			if err != nil {
				return nil, err
			}
			item, err := decodeValue(buf, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			d[key] = item
		}
		return d, nil

	case tagArray:
		count, err := readCount(buf)
		if err != nil {
			return nil, err
		}
		// Every element carries at least its tag byte.
		if count > buf.Len() {
			return nil, fmt.Errorf("wire: array count %d exceeds remaining payload", count)
		}
		a := make(object.Array, count)
		for i := 0; i < count; i++ {
			if a[i], err = decodeValue(buf, depth+1, maxDepth); err != nil {
				return nil, err
			}
		}
		return a, nil

	case tagData:
		count, err := readCount(buf)
		if err != nil {
			return nil, err
		}
		if count > buf.Len() {
			return nil, fmt.Errorf("wire: data length %d exceeds remaining payload", count)
		}
		out := make([]byte, count)
		if _, err := io.ReadFull(buf, out); err != nil {
			return nil, err
		}
		return out, nil

	case tagInt64:
		var scratch [8]byte
		if _, err := io.ReadFull(buf, scratch[:]); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(scratch[:])), nil

	case tagString:
		return readString(buf)

	case tagUUID:
		var u object.UUID
		if _, err := io.ReadFull(buf, u[:]); err != nil {
			return nil, err
		}
		return u, nil

	case tagError:
		msg, err := readString(buf)
		if err != nil {
			return nil, err
		}
		return errors.New(msg), nil

	default:
		return nil, fmt.Errorf("wire: unknown tag %d", tag)
	}
}

func writeCount(buf *bytes.Buffer, n int) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(n))
	buf.Write(scratch[:])
}

func readCount(buf *bytes.Buffer) (int, error) {
	var scratch [4]byte
	if _, err := io.ReadFull(buf, scratch[:]); err != nil {
		return 0, fmt.Errorf("wire: read count: %w", err)
	}
	n := binary.BigEndian.Uint32(scratch[:])
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("wire: count %d out of range", n)
	}
	return int(n), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("wire: string length %d exceeds limit", len(s))
	}
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(s)))
	buf.Write(scratch[:])
	buf.WriteString(s)
	return nil
}

func readString(buf *bytes.Buffer) (string, error) {
	var scratch [2]byte
	if _, err := io.ReadFull(buf, scratch[:]); err != nil {
		return "", fmt.Errorf("wire: read string length: %w", err)
	}
	n := int(binary.BigEndian.Uint16(scratch[:]))
	if n > buf.Len() {
		return "", fmt.Errorf("wire: string length %d exceeds remaining payload", n)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(buf, out); err != nil {
		return "", err
	}
	return string(out), nil
}
