package openassets

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
)

// SwapLeg is one side of a two-party swap: the inputs one party
// contributes, what they receive in return (ToScript), and where their
// change (if any) goes. Each party funds their own fee contribution and
// dust floors from their own leg; the builder never moves value between
// legs beyond what AssetID/Amount call for.
type SwapLeg struct {
	UnspentOutputs []SpendableOutput
	ToScript       []byte
	ChangeScript   []byte
	Amount         uint64
}

// BtcAssetSwap composes a transaction where btcLeg pays Bitcoin and
// receives assetLeg's AssetID units, while assetLeg pays those asset units
// (from its own colored inputs) and receives the Bitcoin. Each leg pays its
// own fee share.
func (b *Builder) BtcAssetSwap(btcLeg SwapLeg, assetLeg SwapLeg, assetID AssetID, btcFees, assetFees Fees) (*wire.MsgTx, error) {
	if len(btcLeg.ToScript) == 0 || len(assetLeg.ToScript) == 0 {
		return nil, errors.New("openassets: both legs require a to_script")
	}

	btcNeeded := int64(btcLeg.Amount) + int64(btcFees)
	btcInputs, btcTotal, err := b.selectUncolored(btcLeg.UnspentOutputs, btcNeeded)
	if err != nil {
		return nil, err
	}

	assetInputs, assetTotalValue, assetTotalQty, err := b.selectAssetInputs(assetLeg.UnspentOutputs, assetID, assetLeg.Amount)
	if err != nil {
		return nil, err
	}
	assetChangeQty, err := subUint64(assetTotalQty, assetLeg.Amount)
	if err != nil {
		return nil, err
	}

	assetPool := assetTotalValue - int64(assetFees)
	if assetPool < b.DustLimit {
		return nil, &InsufficientFundsError{Required: b.DustLimit + int64(assetFees), Available: assetTotalValue}
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range btcInputs {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}
	for _, in := range assetInputs {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}

	// the asset-carrying output the btc-paying party receives takes the
	// first marker slot; the asset leg's asset change, if any, takes the
	// second.
	quantities := []uint64{assetLeg.Amount}
	transferOutputs := []*wire.TxOut{
		wire.NewTxOut(b.DustLimit, btcLeg.ToScript),
	}
	assetPool -= b.DustLimit

	if assetChangeQty > 0 {
		if len(assetLeg.ChangeScript) == 0 {
			return nil, errors.New("openassets: asset leg change_script is required when asset change is non-zero")
		}
		quantities = append(quantities, assetChangeQty)
		transferOutputs = append(transferOutputs, wire.NewTxOut(b.DustLimit, assetLeg.ChangeScript))
		assetPool -= b.DustLimit
	}
	if assetPool < 0 {
		return nil, &InsufficientFundsError{Required: assetTotalValue - assetPool, Available: assetTotalValue}
	}
	if assetPool >= b.DustLimit {
		transferOutputs = append(transferOutputs, wire.NewTxOut(assetPool, assetLeg.ChangeScript))
	}

	marker, err := (Marker{Version: MarkerVersion, Quantities: quantities}).Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, marker))
	for _, out := range transferOutputs {
		tx.AddTxOut(out)
	}

	btcPayout := int64(btcLeg.Amount)
	tx.AddTxOut(wire.NewTxOut(btcPayout, assetLeg.ToScript))
	btcChange := btcTotal - btcPayout - int64(btcFees)
	if btcChange >= b.DustLimit {
		tx.AddTxOut(wire.NewTxOut(btcChange, btcLeg.ChangeScript))
	}

	return tx, nil
}

// AssetAssetSwap composes a transaction trading legA's AssetID units for
// legB's AssetID units. Each leg pays its own fee share and receives its
// counterpart's asset at ToScript, with change returned to ChangeScript.
func (b *Builder) AssetAssetSwap(legA SwapLeg, assetIDA AssetID, feesA Fees, legB SwapLeg, assetIDB AssetID, feesB Fees) (*wire.MsgTx, error) {
	if len(legA.ToScript) == 0 || len(legB.ToScript) == 0 {
		return nil, errors.New("openassets: both legs require a to_script")
	}

	inputsA, valueA, qtyA, err := b.selectAssetInputs(legA.UnspentOutputs, assetIDA, legA.Amount)
	if err != nil {
		return nil, err
	}
	changeA, err := subUint64(qtyA, legA.Amount)
	if err != nil {
		return nil, err
	}

	inputsB, valueB, qtyB, err := b.selectAssetInputs(legB.UnspentOutputs, assetIDB, legB.Amount)
	if err != nil {
		return nil, err
	}
	changeB, err := subUint64(qtyB, legB.Amount)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputsA {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}
	for _, in := range inputsB {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}

	// Outputs must be grouped per asset, in the same order as the tape the
	// colored inputs produce (all of legA's asset A entries first, then all
	// of legB's asset B entries): legA's payout to B immediately followed by
	// legA's own asset-A change, then legB's payout to A immediately
	// followed by legB's own asset-B change. Interleaving A and B would
	// split a single asset's run across non-contiguous output positions and
	// trip the tape's grouping-violation rule.
	quantities := []uint64{legA.Amount}
	outputs := []*wire.TxOut{
		wire.NewTxOut(b.DustLimit, legB.ToScript), // B receives A's asset
	}
	poolA := valueA - int64(feesA) - b.DustLimit
	poolB := valueB - int64(feesB) - b.DustLimit

	if changeA > 0 {
		if len(legA.ChangeScript) == 0 {
			return nil, errors.New("openassets: leg A change_script is required when asset change is non-zero")
		}
		quantities = append(quantities, changeA)
		outputs = append(outputs, wire.NewTxOut(b.DustLimit, legA.ChangeScript))
		poolA -= b.DustLimit
	}

	quantities = append(quantities, legB.Amount)
	outputs = append(outputs, wire.NewTxOut(b.DustLimit, legA.ToScript)) // A receives B's asset

	if changeB > 0 {
		if len(legB.ChangeScript) == 0 {
			return nil, errors.New("openassets: leg B change_script is required when asset change is non-zero")
		}
		quantities = append(quantities, changeB)
		outputs = append(outputs, wire.NewTxOut(b.DustLimit, legB.ChangeScript))
		poolB -= b.DustLimit
	}

	if poolA < 0 {
		return nil, &InsufficientFundsError{Required: valueA - poolA, Available: valueA}
	}
	if poolB < 0 {
		return nil, &InsufficientFundsError{Required: valueB - poolB, Available: valueB}
	}
	if poolA >= b.DustLimit {
		outputs = append(outputs, wire.NewTxOut(poolA, legA.ChangeScript))
	}
	if poolB >= b.DustLimit {
		outputs = append(outputs, wire.NewTxOut(poolB, legB.ChangeScript))
	}

	marker, err := (Marker{Version: MarkerVersion, Quantities: quantities}).Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, marker))
	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	return tx, nil
}
