package openassets

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBtcAssetSwap(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xEF

	btcLeg := SwapLeg{
		UnspentOutputs: []SpendableOutput{spendable(t, 0, []byte{0x01}, 20000)},
		ToScript:       []byte{0x02}, // receives the asset
		ChangeScript:   []byte{0x03},
		Amount:         5000, // satoshis paid to the asset seller
	}
	assetLeg := SwapLeg{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 1, assetID, 1800, 1000)},
		ToScript:       []byte{0x04}, // receives the bitcoin
		ChangeScript:   []byte{0x05},
		Amount:         1000,
	}

	tx, err := b.BtcAssetSwap(btcLeg, assetLeg, assetID, 500, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2)

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1000}, marker.Quantities)

	assert.Equal(t, []byte{0x02}, tx.TxOut[1].PkScript)
	assert.Equal(t, int64(600), tx.TxOut[1].Value)

	var btcPayoutOut, btcChangeOut bool
	for _, out := range tx.TxOut[2:] {
		if string(out.PkScript) == string([]byte{0x04}) && out.Value == 5000 {
			btcPayoutOut = true
		}
		if string(out.PkScript) == string([]byte{0x03}) {
			btcChangeOut = true
		}
	}
	assert.True(t, btcPayoutOut, "expected btc payout output to asset leg's to_script")
	assert.True(t, btcChangeOut, "expected btc change output")
}

func TestAssetAssetSwap(t *testing.T) {
	b := NewBuilder(600)

	// Issue asset A and asset B from distinct transactions so the swap's
	// inputs are colored the way a real coloring engine would derive them.
	fetcher := NewMapFetcher()

	issuanceScriptA := []byte{0x01}
	fundingA := wire.NewMsgTx(wire.TxVersion)
	fundingA.AddTxOut(wire.NewTxOut(100000, issuanceScriptA))
	fundingHashA := fetcher.Add(fundingA)

	issueA := wire.NewMsgTx(wire.TxVersion)
	issueA.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHashA, Index: 0}, nil, nil))
	issueA.AddTxOut(wire.NewTxOut(1800, issuanceScriptA))
	issueA.AddTxOut(markerTxOut(t, []uint64{1000}, nil))
	issueHashA := fetcher.Add(issueA)
	assetA := DeriveAssetID(issuanceScriptA)

	issuanceScriptB := []byte{0x02}
	fundingB := wire.NewMsgTx(wire.TxVersion)
	fundingB.AddTxOut(wire.NewTxOut(100000, issuanceScriptB))
	fundingHashB := fetcher.Add(fundingB)

	issueB := wire.NewMsgTx(wire.TxVersion)
	issueB.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fundingHashB, Index: 0}, nil, nil))
	issueB.AddTxOut(wire.NewTxOut(1200, issuanceScriptB))
	issueB.AddTxOut(markerTxOut(t, []uint64{2000}, nil))
	issueHashB := fetcher.Add(issueB)
	assetB := DeriveAssetID(issuanceScriptB)

	legA := SwapLeg{
		UnspentOutputs: []SpendableOutput{{
			OutPoint: wire.OutPoint{Hash: issueHashA, Index: 0},
			Output:   ColoredOutput{Value: 1800, HasAsset: true, AssetID: assetA, Quantity: 1000},
		}},
		ToScript:     []byte{0x10}, // A receives B's asset here
		ChangeScript: []byte{0x11},
		Amount:       500,
	}
	legB := SwapLeg{
		UnspentOutputs: []SpendableOutput{{
			OutPoint: wire.OutPoint{Hash: issueHashB, Index: 0},
			Output:   ColoredOutput{Value: 1200, HasAsset: true, AssetID: assetB, Quantity: 2000},
		}},
		ToScript:     []byte{0x20}, // B receives A's asset here
		ChangeScript: []byte{0x21},
		Amount:       800,
	}

	tx, err := b.AssetAssetSwap(legA, assetA, 0, legB, assetB, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2)

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	// legA's payout immediately followed by legA's own change, then legB's
	// payout immediately followed by legB's own change: each asset's run
	// stays contiguous, matching input order (all of legA then all of
	// legB).
	assert.Equal(t, []uint64{500, 500, 800, 1200}, marker.Quantities)

	// Recoloring the built transaction must actually reproduce the swap:
	// each party receives the other's asset, and each party's own change
	// comes back as their own asset, not the counterparty's.
	e := newEngine(fetcher)
	colored, err := e.ColorRawTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, colored, len(tx.TxOut))

	assert.Equal(t, []byte{0x20}, colored[1].Script)
	assert.True(t, colored[1].HasAsset)
	assert.Equal(t, assetA, colored[1].AssetID)
	assert.Equal(t, uint64(500), colored[1].Quantity)

	assert.Equal(t, []byte{0x11}, colored[2].Script)
	assert.True(t, colored[2].HasAsset)
	assert.Equal(t, assetA, colored[2].AssetID)
	assert.Equal(t, uint64(500), colored[2].Quantity)

	assert.Equal(t, []byte{0x10}, colored[3].Script)
	assert.True(t, colored[3].HasAsset)
	assert.Equal(t, assetB, colored[3].AssetID)
	assert.Equal(t, uint64(800), colored[3].Quantity)

	assert.Equal(t, []byte{0x21}, colored[4].Script)
	assert.True(t, colored[4].HasAsset)
	assert.Equal(t, assetB, colored[4].AssetID)
	assert.Equal(t, uint64(1200), colored[4].Quantity)
}

func TestBtcAssetSwapRequiresBothToScripts(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	_, err := b.BtcAssetSwap(SwapLeg{}, SwapLeg{ToScript: []byte{0x01}}, assetID, 0, 0)
	assert.Error(t, err)
}
