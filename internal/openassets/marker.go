package openassets

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/pkg/leb128"
)

// MarkerMagic is the 4-byte prefix identifying an Open Assets marker
// payload: "OA\x01\x00".
var MarkerMagic = [4]byte{0x4f, 0x41, 0x01, 0x00}

// MarkerVersion is the only payload version this implementation produces
// or accepts.
const MarkerVersion uint16 = 1

// Marker is the decoded Open Assets marker payload.
type Marker struct {
	Version    uint16
	Quantities []uint64
	Metadata   []byte
}

// Serialize encodes a Marker as the bytes pushed by an OP_RETURN output:
// magic ‖ version (big-endian uint16) ‖ varint(len(quantities)) ‖
// LEB128(quantities...) ‖ varint(len(metadata)) ‖ metadata.
func (m Marker) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(MarkerMagic[:])

	var versionBytes [2]byte
	binary.BigEndian.PutUint16(versionBytes[:], m.Version)
	buf.Write(versionBytes[:])

	if err := wire.WriteVarInt(&buf, 0, uint64(len(m.Quantities))); err != nil {
		return nil, errors.Wrap(err, "cannot write quantity count")
	}
	for i, q := range m.Quantities {
		encoded, err := leb128.Encode(q)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot encode quantity at index %d", i)
		}
		buf.Write(encoded)
	}

	if err := wire.WriteVarInt(&buf, 0, uint64(len(m.Metadata))); err != nil {
		return nil, errors.Wrap(err, "cannot write metadata length")
	}
	buf.Write(m.Metadata)

	return buf.Bytes(), nil
}

// Script wraps Serialize's payload in the OP_RETURN script the payload is
// carried in, chunking across pushes if it exceeds a single script element.
func (m Marker) Script() ([]byte, error) {
	payload, err := m.Serialize()
	if err != nil {
		return nil, err
	}

	sb := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN)
	for len(payload) > txscript.MaxScriptElementSize {
		sb.AddData(payload[:txscript.MaxScriptElementSize])
		payload = payload[txscript.MaxScriptElementSize:]
	}
	sb.AddData(payload)

	script, err := sb.Script()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build marker script")
	}
	return script, nil
}

// parseMarkerPayload parses a raw marker payload as extracted by
// payloadFromScript, checking the magic and version itself. It returns
// ErrInvalidMarker wrapped with a reason, plus the matching MarkerFlaw, if
// the payload is malformed.
func parseMarkerPayload(payload []byte) (*Marker, MarkerFlaw, error) {
	if len(payload) < 4+2 {
		return nil, FlawBadMagic, errors.Wrap(ErrInvalidMarker, "payload too short for magic and version")
	}
	if !bytes.Equal(payload[:4], MarkerMagic[:]) {
		return nil, FlawBadMagic, errors.Wrap(ErrInvalidMarker, "magic mismatch")
	}
	version := binary.BigEndian.Uint16(payload[4:6])
	if version != MarkerVersion {
		return nil, FlawBadMagic, errors.Wrap(ErrInvalidMarker, "unsupported version")
	}

	remaining := payload[6:]

	count, remaining, ok := readCompactSize(remaining)
	if !ok {
		return nil, FlawBadVarInt, errors.Wrap(ErrInvalidMarker, "cannot read quantity count")
	}

	quantities := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		q, length, err := leb128.Decode(remaining)
		if err != nil {
			return nil, FlawBadQuantity, errors.Wrapf(ErrInvalidMarker, "cannot decode quantity %d", i)
		}
		quantities = append(quantities, q)
		remaining = remaining[length:]
	}

	metadataLen, remaining, ok := readCompactSize(remaining)
	if !ok {
		return nil, FlawBadVarInt, errors.Wrap(ErrInvalidMarker, "cannot read metadata length")
	}
	if uint64(len(remaining)) != metadataLen {
		return nil, FlawMetadataLength, errors.Wrap(ErrInvalidMarker, "metadata length does not match remaining payload bytes")
	}
	metadata := remaining[:metadataLen]

	return &Marker{
		Version:    version,
		Quantities: quantities,
		Metadata:   metadata,
	}, FlawNone, nil
}

// readCompactSize reads a Bitcoin-style CompactSize varint from the head of
// data, returning the decoded value and the slice past it. The byte count
// consumed is determined from the discriminator byte, not from the decoded
// value. Non-canonical encodings are rejected (ok=false), since
// wire.ReadVarInt refuses them.
func readCompactSize(data []byte) (val uint64, rest []byte, ok bool) {
	if len(data) == 0 {
		return 0, nil, false
	}

	size := 1
	switch data[0] {
	case 0xfd:
		size = 3
	case 0xfe:
		size = 5
	case 0xff:
		size = 9
	}
	if len(data) < size {
		return 0, nil, false
	}

	val, err := wire.ReadVarInt(bytes.NewReader(data[:size]), 0)
	if err != nil {
		return 0, nil, false
	}
	return val, data[size:], true
}

// findMarker scans a transaction's outputs for the first one whose script
// is a well-formed OP_RETURN push beginning with the Open Assets magic and
// which parses into a structurally valid Marker. It returns the output
// index and decoded marker, or -1 if no output qualifies. flaws reports,
// for diagnostics only, the reason the last magic-matching candidate (if
// any) was rejected.
func findMarker(outputs []*wire.TxOut) (index int, marker *Marker, flaws MarkerFlaw) {
	for i, out := range outputs {
		payload, ok := payloadFromScript(out.PkScript)
		if !ok {
			continue
		}
		if len(payload) < 4 || !bytes.Equal(payload[:4], MarkerMagic[:]) {
			continue
		}
		m, flaw, err := parseMarkerPayload(payload)
		if err != nil {
			flaws = flaw
			continue
		}
		return i, m, FlawNone
	}
	return -1, nil, flaws
}

// payloadFromScript extracts the concatenated data pushes of an OP_RETURN
// script, or ok=false if the script is not OP_RETURN followed exclusively
// by data-push opcodes.
func payloadFromScript(script []byte) (payload []byte, ok bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() {
		return nil, false
	}
	if tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, false
	}

	for tokenizer.Next() {
		if !isDataPushOpcode(tokenizer.Opcode()) {
			return nil, false
		}
		payload = append(payload, tokenizer.Data()...)
	}
	if tokenizer.Err() != nil {
		return nil, false
	}

	return payload, true
}

// isDataPushOpcode reports whether opcode only ever pushes data (OP_0
// through OP_PUSHDATA4), matching the acceptable OP_RETURN push shapes of
// a marker script: direct pushes and OP_PUSHDATA1/2/4.
func isDataPushOpcode(opcode byte) bool {
	return opcode <= txscript.OP_PUSHDATA4
}
