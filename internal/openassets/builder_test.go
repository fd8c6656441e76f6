package openassets

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spendable(t *testing.T, idx uint32, script []byte, value int64) SpendableOutput {
	t.Helper()
	return SpendableOutput{
		OutPoint: OutPoint{Hash: chainhash.Hash{byte(idx + 1)}, Index: idx},
		Output:   ColoredOutput{Script: script, Value: value},
	}
}

func coloredSpendable(t *testing.T, idx uint32, assetID AssetID, value int64, qty uint64) SpendableOutput {
	t.Helper()
	return SpendableOutput{
		OutPoint: OutPoint{Hash: chainhash.Hash{byte(idx + 1)}, Index: idx},
		Output:   ColoredOutput{Value: value, HasAsset: true, AssetID: assetID, Quantity: qty},
	}
}

func TestBuilderIssue(t *testing.T) {
	b := NewBuilder(600)
	issuanceScript := []byte{0x01}

	params := IssuanceParams{
		UnspentOutputs: []SpendableOutput{spendable(t, 0, issuanceScript, 100000)},
		IssuanceScript: issuanceScript,
		ToScript:       []byte{0x02},
		ChangeScript:   []byte{0x03},
		Amount:         1000,
	}

	tx, err := b.Issue(params, nil, 1000)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 3)

	assert.Equal(t, int64(600), tx.TxOut[0].Value)
	assert.Equal(t, []byte{0x02}, tx.TxOut[0].PkScript)

	payload, ok := payloadFromScript(tx.TxOut[1].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1000}, marker.Quantities)

	assert.Equal(t, int64(100000-600-1000), tx.TxOut[2].Value)
}

func TestBuilderIssueInsufficientFunds(t *testing.T) {
	b := NewBuilder(600)
	issuanceScript := []byte{0x01}

	params := IssuanceParams{
		UnspentOutputs: []SpendableOutput{spendable(t, 0, issuanceScript, 100)},
		IssuanceScript: issuanceScript,
		ToScript:       []byte{0x02},
		Amount:         1000,
	}

	_, err := b.Issue(params, nil, 1000)
	require.Error(t, err)
	var insufficient *InsufficientFundsError
	assert.ErrorAs(t, err, &insufficient)
}

func TestBuilderTransferAssetsWithChange(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xAB

	params := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 1200, 1000)},
		ToScript:       []byte{0x02},
		ChangeScript:   []byte{0x03},
		Amount:         400,
	}

	tx, err := b.TransferAssets(assetID, params, nil, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 3) // marker, transfer-to, asset-change

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []uint64{400, 600}, marker.Quantities)

	assert.Equal(t, int64(600), tx.TxOut[1].Value)
	assert.Equal(t, int64(600), tx.TxOut[2].Value)
}

func TestBuilderTransferAssetsExactNoChange(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xAB

	params := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 600, 1000)},
		ToScript:       []byte{0x02},
		Amount:         1000,
	}

	tx, err := b.TransferAssets(assetID, params, nil, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 2)

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1000}, marker.Quantities)
}

func TestBuilderTransferAssetsInsufficientAssets(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xAB

	params := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 600, 100)},
		ToScript:       []byte{0x02},
		Amount:         1000,
	}

	_, err := b.TransferAssets(assetID, params, nil, 0)
	require.Error(t, err)
	var insufficient *InsufficientAssetsError
	assert.ErrorAs(t, err, &insufficient)
}

func TestBuilderTransferAssetsWithBitcoinLeg(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xAB

	transferParams := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 600, 1000)},
		ToScript:       []byte{0x02},
		Amount:         1000,
	}
	btcParams := &TransferParams{
		UnspentOutputs: []SpendableOutput{spendable(t, 1, []byte{0x05}, 10000)},
		ToScript:       []byte{0x06},
		ChangeScript:   []byte{0x07},
		Amount:         2000,
	}

	tx, err := b.TransferAssets(assetID, transferParams, btcParams, 500)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2)

	// marker, transfer-to, btc-to, btc-change
	require.Len(t, tx.TxOut, 4)
	assert.Equal(t, int64(2000), tx.TxOut[2].Value)
	assert.Equal(t, int64(600+10000-600-2000-500), tx.TxOut[3].Value)
}

func TestBuilderTransferBitcoin(t *testing.T) {
	b := NewBuilder(600)
	params := TransferParams{
		UnspentOutputs: []SpendableOutput{spendable(t, 0, []byte{0x01}, 10000)},
		ToScript:       []byte{0x02},
		ChangeScript:   []byte{0x03},
		Amount:         5000,
	}

	tx, err := b.TransferBitcoin(params, 500)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 2)
	assert.Equal(t, int64(5000), tx.TxOut[0].Value)
	assert.Equal(t, int64(10000-5000-500), tx.TxOut[1].Value)
}

func TestBuilderBurnWithRemainder(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xCD

	params := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 1200, 1000)},
		ChangeScript:   []byte{0x03},
		Amount:         400,
	}

	tx, err := b.Burn(assetID, params, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 3) // marker, asset change, bitcoin change

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	// burnt units (400) are simply omitted from the marker's quantity
	// list; only the surviving change quantity is assigned.
	assert.Equal(t, []uint64{600}, marker.Quantities)
	assert.Equal(t, int64(600), tx.TxOut[1].Value)
}

func TestBuilderBurnFull(t *testing.T) {
	b := NewBuilder(600)
	var assetID AssetID
	assetID[0] = 0xCD

	params := TransferParams{
		UnspentOutputs: []SpendableOutput{coloredSpendable(t, 0, assetID, 600, 1000)},
		Amount:         1000,
	}

	tx, err := b.Burn(assetID, params, 0)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 1) // marker only, no surviving outputs

	payload, ok := payloadFromScript(tx.TxOut[0].PkScript)
	require.True(t, ok)
	marker, _, err := parseMarkerPayload(payload)
	require.NoError(t, err)
	assert.Empty(t, marker.Quantities)
}

func TestBuilderDustRollupFoldedIntoFees(t *testing.T) {
	b := NewBuilder(600)
	issuanceScript := []byte{0x01}

	params := IssuanceParams{
		UnspentOutputs: []SpendableOutput{spendable(t, 0, issuanceScript, 1000)},
		IssuanceScript: issuanceScript,
		ToScript:       []byte{0x02},
		ChangeScript:   []byte{0x03},
		Amount:         1000,
	}

	// change would be 1000 - 600 - 300 = 100, below dust_limit: it must be
	// folded into fees rather than emitted as a sub-dust output.
	tx, err := b.Issue(params, nil, 300)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 2)
}
