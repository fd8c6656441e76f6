package openassets

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/openassets-go/openassets/pkg/leb128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerRoundTrip(t *testing.T) {
	m := Marker{
		Version:    MarkerVersion,
		Quantities: []uint64{0, 1, 100000000, leb128.MaxValue},
		Metadata:   []byte("u=https://example.com/asset.json"),
	}

	script, err := m.Script()
	require.NoError(t, err)

	payload, ok := payloadFromScript(script)
	require.True(t, ok)

	parsed, flaw, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, FlawNone, flaw)
	assert.Equal(t, m.Version, parsed.Version)
	assert.Equal(t, m.Quantities, parsed.Quantities)
	assert.Equal(t, m.Metadata, parsed.Metadata)
}

func TestMarkerRoundTripEmpty(t *testing.T) {
	m := Marker{Version: MarkerVersion}
	script, err := m.Script()
	require.NoError(t, err)

	payload, ok := payloadFromScript(script)
	require.True(t, ok)

	parsed, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Empty(t, parsed.Quantities)
	assert.Empty(t, parsed.Metadata)
}

func TestFindMarkerSkipsNonMarkerOpReturn(t *testing.T) {
	unrelated := wire.NewTxOut(0, mustOpReturnScript(t, []byte("not an open assets marker")))

	m := Marker{Version: MarkerVersion, Quantities: []uint64{42}}
	markerScript, err := m.Script()
	require.NoError(t, err)

	outputs := []*wire.TxOut{
		unrelated,
		wire.NewTxOut(0, markerScript),
	}

	index, marker, flaw := findMarker(outputs)
	require.Equal(t, 1, index)
	require.NotNil(t, marker)
	assert.Equal(t, FlawNone, flaw)
	assert.Equal(t, []uint64{42}, marker.Quantities)
}

func TestFindMarkerNoneFound(t *testing.T) {
	outputs := []*wire.TxOut{
		wire.NewTxOut(1000, []byte{0x76, 0xa9, 0x14}),
	}
	index, marker, _ := findMarker(outputs)
	assert.Equal(t, -1, index)
	assert.Nil(t, marker)
}

func TestParseMarkerPayloadBadMagic(t *testing.T) {
	_, flaw, err := parseMarkerPayload([]byte("garbage-not-a-marker"))
	assert.Error(t, err)
	assert.Equal(t, FlawBadMagic, flaw)
}

// Mirrors the canonical invalid-payload case of a marker whose declared
// metadata length is shorter than the bytes actually trailing it: 6 bytes
// declared, 8 present.
func TestParseMarkerPayloadMetadataLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MarkerMagic[:])
	var versionBytes [2]byte
	binary.BigEndian.PutUint16(versionBytes[:], MarkerVersion)
	buf.Write(versionBytes[:])

	require.NoError(t, wire.WriteVarInt(&buf, 0, 1))
	quantity, err := leb128.Encode(1000)
	require.NoError(t, err)
	buf.Write(quantity)

	require.NoError(t, wire.WriteVarInt(&buf, 0, 6))
	buf.WriteString("abcdefgh")

	_, flaw, err := parseMarkerPayload(buf.Bytes())
	assert.Error(t, err)
	assert.Equal(t, FlawMetadataLength, flaw)
}

func mustOpReturnScript(t *testing.T, data []byte) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(data).Script()
	require.NoError(t, err)
	return script
}
