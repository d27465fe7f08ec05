package wire_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"msgport/internal/object"
	"msgport/internal/wire"
)

func roundTrip(t *testing.T, f *wire.Frame, limits wire.Limits) *wire.Frame {
	t.Helper()
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, f, limits); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	decoded, err := wire.ReadFrame(&buf, limits)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return decoded
}

func TestFrameRoundTrip(t *testing.T) {
	id := object.NewUUID()
	device := object.NewUUID()
	f := &wire.Frame{
		Kind:    wire.KindCall,
		ID:      id,
		Service: "port.echo",
		Body: object.Dict{
			"kCBMsgId": int64(4),
			"args": object.Dict{
				"name":    "sensor",
				"payload": []byte{0x01, 0x02, 0x03},
				"uuids":   object.Array{device},
			},
		},
	}

	decoded := roundTrip(t, f, wire.Limits{})
	if decoded.Kind != wire.KindCall || decoded.ID != id || decoded.Service != "port.echo" {
		t.Fatalf("frame header mismatch: %+v", decoded)
	}
	body, ok := decoded.Body.(object.Dict)
	if !ok {
		t.Fatalf("body type %T", decoded.Body)
	}
	if body.MustGetInt("kCBMsgId") != 4 {
		t.Fatalf("kCBMsgId = %v", body["kCBMsgId"])
	}
	args := body.MustGetDict("args")
	if args.GetString("name", "") != "sensor" {
		t.Fatalf("name = %v", args["name"])
	}
	if got := args.MustGetHexBytes("payload"); got != "010203" {
		t.Fatalf("payload = %s", got)
	}
	if args.MustGetArray("uuids").GetUUID(0) != device {
		t.Fatal("uuid did not survive round trip")
	}
}

func TestFrameRoundTripNormalizesBody(t *testing.T) {
	f := &wire.Frame{
		Kind: wire.KindCast,
		ID:   object.NewUUID(),
		Body: map[string]any{"count": 7, "tags": []string{"a"}},
	}
	decoded := roundTrip(t, f, wire.Limits{})
	body := decoded.Body.(object.Dict)
	if body.MustGetInt("count") != 7 {
		t.Fatalf("count = %v", body["count"])
	}
	if body.MustGetArray("tags")[0] != "a" {
		t.Fatalf("tags = %#v", body["tags"])
	}
}

func TestErrorFrameCarriesSentinelCode(t *testing.T) {
	f := &wire.Frame{
		Kind:   wire.KindError,
		ID:     object.NewUUID(),
		Code:   wire.CodeInterrupted,
		Detail: "service restarting",
	}
	decoded := roundTrip(t, f, wire.Limits{})
	if got := decoded.Code.Sentinel(); !errors.Is(got, object.ErrConnectionInterrupted) {
		t.Fatalf("sentinel = %v", got)
	}
	if decoded.Detail != "service restarting" {
		t.Fatalf("detail = %q", decoded.Detail)
	}
	if wire.CodeNone.Sentinel() != nil {
		t.Fatal("CodeNone must not map to a sentinel")
	}
}

func TestWriteFrameRejectsOversize(t *testing.T) {
	limits := wire.Limits{MaxFrameBytes: 128}
	f := &wire.Frame{
		Kind: wire.KindCast,
		ID:   object.NewUUID(),
		Body: object.Dict{"blob": bytes.Repeat([]byte{0xff}, 1024)},
	}
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, f, limits); !errors.Is(err, wire.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsOversizeHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, &wire.Frame{Kind: wire.KindCast, Body: object.Dict{"k": strings.Repeat("v", 512)}}, wire.Limits{}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	_, err := wire.ReadFrame(&buf, wire.Limits{MaxFrameBytes: 64})
	if !errors.Is(err, wire.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

// rawFrame wraps a hand-built body in a minimal length-prefixed record
// (cast kind, zero id and code, empty service and detail).
func rawFrame(body []byte) []byte {
	payload := []byte{byte(wire.KindCast)}
	payload = append(payload, make([]byte, 16)...)
	payload = append(payload, 0)
	payload = append(payload, 0, 0)
	payload = append(payload, 0, 0)
	payload = append(payload, body...)
	return append(binary.BigEndian.AppendUint32(nil, uint32(len(payload))), payload...)
}

func TestReadFrameRejectsLyingContainerCounts(t *testing.T) {
	// Tag bytes match the encoder: dict=1, array=2. A few dozen bytes
	// of frame must not let a peer claim millions of elements.
	cases := []struct {
		name string
		body []byte
	}{
		{"array", binary.BigEndian.AppendUint32([]byte{2}, 1<<24)},
		{"dict", binary.BigEndian.AppendUint32([]byte{1}, 1<<24)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wire.ReadFrame(bytes.NewReader(rawFrame(tc.body)), wire.Limits{})
			if err == nil || !strings.Contains(err.Error(), "exceeds remaining payload") {
				t.Fatalf("expected remaining-payload guard, got %v", err)
			}
		})
	}
}

func TestEncodeRejectsExcessDepth(t *testing.T) {
	nested := object.Dict{}
	current := nested
	for i := 0; i < 40; i++ {
		next := object.Dict{}
		current["next"] = next
		current = next
	}
	var buf bytes.Buffer
	err := wire.WriteFrame(&buf, &wire.Frame{Kind: wire.KindCast, Body: nested}, wire.Limits{MaxObjectDepth: 8})
	if !errors.Is(err, wire.ErrObjectTooDeep) {
		t.Fatalf("expected ErrObjectTooDeep, got %v", err)
	}
}

func TestErrorObjectSurvivesAsMessage(t *testing.T) {
	f := &wire.Frame{
		Kind: wire.KindReply,
		ID:   object.NewUUID(),
		Body: object.Dict{"failure": errors.New("device busy")},
	}
	decoded := roundTrip(t, f, wire.Limits{})
	failure, ok := decoded.Body.(object.Dict)["failure"].(error)
	if !ok {
		t.Fatalf("failure type %T", decoded.Body.(object.Dict)["failure"])
	}
	if failure.Error() != "device busy" {
		t.Fatalf("failure = %v", failure)
	}
	if object.TypeOf(failure) != object.TypeError {
		t.Fatal("decoded failure must classify as TypeError")
	}
}
