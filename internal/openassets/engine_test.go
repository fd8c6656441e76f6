package openassets

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerTxOut(t *testing.T, quantities []uint64, metadata []byte) *wire.TxOut {
	t.Helper()
	script, err := (Marker{Version: MarkerVersion, Quantities: quantities, Metadata: metadata}).Script()
	require.NoError(t, err)
	return wire.NewTxOut(0, script)
}

func newEngine(fetcher *MapFetcher) *Engine {
	return NewEngine(fetcher, NewMemoryCache())
}

// TestColorNoMarker covers the case where a transaction carries no marker
// output at all: every output must come back uncolored.
func TestColorNoMarker(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50000, []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(20000, []byte{0x52}))

	outputs, err := e.colorTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	for _, o := range outputs {
		assert.False(t, o.HasAsset)
		assert.Equal(t, CategoryUncolored, o.Category)
	}
}

// TestColorSimpleIssuance issues an asset whose id is derived from the
// script of the issuing transaction's first input.
func TestColorSimpleIssuance(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	issuanceScript := []byte{0x76, 0xa9, 0x14, 0x01}
	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(100000, issuanceScript))
	fundingHash := fetcher.Add(fundingTx)

	issueTx := wire.NewMsgTx(wire.TxVersion)
	issueTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHash, Index: 0}, nil, nil))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x01})) // issuance output
	issueTx.AddTxOut(markerTxOut(t, []uint64{1000}, nil))
	issueTx.AddTxOut(wire.NewTxOut(99000, []byte{0x02})) // bitcoin change, uncolored

	outputs, err := e.colorTransaction(context.Background(), issueTx)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.True(t, outputs[0].HasAsset)
	assert.Equal(t, uint64(1000), outputs[0].Quantity)
	assert.Equal(t, DeriveAssetID(issuanceScript), outputs[0].AssetID)
	assert.Equal(t, CategoryIssuance, outputs[0].Category)

	assert.False(t, outputs[1].HasAsset)
	assert.Equal(t, CategoryUncolored, outputs[1].Category)

	assert.False(t, outputs[2].HasAsset)
	assert.Equal(t, CategoryUncolored, outputs[2].Category)
}

// TestColorTransferConservation colors a transfer transaction that spends
// one colored input and splits its units across two transfer outputs.
func TestColorTransferConservation(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	issuanceScript := []byte{0x01}
	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(100000, issuanceScript))
	fundingHash := fetcher.Add(fundingTx)

	issueTx := wire.NewMsgTx(wire.TxVersion)
	issueTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHash, Index: 0}, nil, nil))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x01}))
	issueTx.AddTxOut(markerTxOut(t, []uint64{1000}, nil))
	issueHash := fetcher.Add(issueTx)

	transferTx := wire.NewMsgTx(wire.TxVersion)
	transferTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: issueHash, Index: 0}, nil, nil))
	transferTx.AddTxOut(markerTxOut(t, []uint64{400, 600}, nil))
	transferTx.AddTxOut(wire.NewTxOut(600, []byte{0x03}))
	transferTx.AddTxOut(wire.NewTxOut(600, []byte{0x04}))

	outputs, err := e.colorTransaction(context.Background(), transferTx)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assetID := DeriveAssetID(issuanceScript)
	assert.Equal(t, assetID, outputs[1].AssetID)
	assert.Equal(t, uint64(400), outputs[1].Quantity)
	assert.Equal(t, assetID, outputs[2].AssetID)
	assert.Equal(t, uint64(600), outputs[2].Quantity)
}

// TestColorGroupingViolation spends two differently-colored inputs into a
// single transfer output demanding more than either supplies alone: the
// whole transaction must downgrade to uncolored.
func TestColorGroupingViolation(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	scriptA := []byte{0x0a}
	scriptB := []byte{0x0b}
	fundingA := wire.NewMsgTx(wire.TxVersion)
	fundingA.AddTxOut(wire.NewTxOut(100000, scriptA))
	fundingHashA := fetcher.Add(fundingA)

	fundingB := wire.NewMsgTx(wire.TxVersion)
	fundingB.AddTxOut(wire.NewTxOut(100000, scriptB))
	fundingHashB := fetcher.Add(fundingB)

	issueA := wire.NewMsgTx(wire.TxVersion)
	issueA.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHashA, Index: 0}, nil, nil))
	issueA.AddTxOut(wire.NewTxOut(600, []byte{0x01}))
	issueA.AddTxOut(markerTxOut(t, []uint64{500}, nil))
	issueHashA := fetcher.Add(issueA)

	issueB := wire.NewMsgTx(wire.TxVersion)
	issueB.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHashB, Index: 0}, nil, nil))
	issueB.AddTxOut(wire.NewTxOut(600, []byte{0x02}))
	issueB.AddTxOut(markerTxOut(t, []uint64{500}, nil))
	issueHashB := fetcher.Add(issueB)

	transferTx := wire.NewMsgTx(wire.TxVersion)
	transferTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: issueHashA, Index: 0}, nil, nil))
	transferTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: issueHashB, Index: 0}, nil, nil))
	transferTx.AddTxOut(markerTxOut(t, []uint64{1000}, nil))
	transferTx.AddTxOut(wire.NewTxOut(600, []byte{0x03}))

	outputs, err := e.colorTransaction(context.Background(), transferTx)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	for _, o := range outputs {
		assert.False(t, o.HasAsset)
		assert.Equal(t, CategoryUncolored, o.Category)
	}
}

// TestColorInsufficientUnitsDowngrades covers transfer outputs demanding
// more units in total than the input tape supplies.
func TestColorInsufficientUnitsDowngrades(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	issuanceScript := []byte{0x01}
	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(100000, issuanceScript))
	fundingHash := fetcher.Add(fundingTx)

	issueTx := wire.NewMsgTx(wire.TxVersion)
	issueTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHash, Index: 0}, nil, nil))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x01}))
	issueTx.AddTxOut(markerTxOut(t, []uint64{100}, nil))
	issueHash := fetcher.Add(issueTx)

	transferTx := wire.NewMsgTx(wire.TxVersion)
	transferTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: issueHash, Index: 0}, nil, nil))
	transferTx.AddTxOut(markerTxOut(t, []uint64{999}, nil))
	transferTx.AddTxOut(wire.NewTxOut(600, []byte{0x03}))

	outputs, err := e.colorTransaction(context.Background(), transferTx)
	require.NoError(t, err)
	for _, o := range outputs {
		assert.False(t, o.HasAsset)
	}
}

// TestColorZeroQuantityIssuanceCarriesCategory covers the chosen resolution
// for zero-quantity issuance outputs: they keep category=issuance even
// though they carry no asset.
func TestColorZeroQuantityIssuanceCarriesCategory(t *testing.T) {
	fetcher := NewMapFetcher()
	e := newEngine(fetcher)

	issuanceScript := []byte{0x01}
	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(100000, issuanceScript))
	fundingHash := fetcher.Add(fundingTx)

	issueTx := wire.NewMsgTx(wire.TxVersion)
	issueTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHash, Index: 0}, nil, nil))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x01}))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x02}))
	issueTx.AddTxOut(markerTxOut(t, []uint64{0, 1000}, nil))

	outputs, err := e.colorTransaction(context.Background(), issueTx)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.Equal(t, CategoryIssuance, outputs[0].Category)
	assert.False(t, outputs[0].HasAsset)
	assert.Equal(t, CategoryIssuance, outputs[1].Category)
	assert.True(t, outputs[1].HasAsset)
}

func TestColorOutputPopulatesCache(t *testing.T) {
	fetcher := NewMapFetcher()
	cache := NewMemoryCache()
	e := NewEngine(fetcher, cache)

	issuanceScript := []byte{0x01}
	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(wire.NewTxOut(100000, issuanceScript))
	fundingHash := fetcher.Add(fundingTx)

	issueTx := wire.NewMsgTx(wire.TxVersion)
	issueTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHash, Index: 0}, nil, nil))
	issueTx.AddTxOut(wire.NewTxOut(600, []byte{0x01}))
	issueTx.AddTxOut(markerTxOut(t, []uint64{1000}, nil))
	issueHash := fetcher.Add(issueTx)

	out := wire.OutPoint{Hash: issueHash, Index: 0}
	colored, err := e.ColorOutput(context.Background(), out)
	require.NoError(t, err)
	assert.True(t, colored.HasAsset)
	assert.Equal(t, uint64(1000), colored.Quantity)

	cached, ok, err := cache.Get(context.Background(), out.Hash, out.Index)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, colored, *cached)
}
