package openassets

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/openassets-go/openassets/common/errs"
)

// Builder plans unsigned Bitcoin transactions for the Open Assets
// issue/transfer/swap/burn operations. It is purely computational: it
// never fetches a transaction and never suspends.
type Builder struct {
	// DustLimit is the minimum satoshi value every non-OP_RETURN output
	// must carry.
	DustLimit int64
}

func NewBuilder(dustLimit int64) *Builder {
	return &Builder{DustLimit: dustLimit}
}

// isDust reports whether value is below the configured dust_limit, or below
// what the network would itself relay as standard for a script of this
// size, whichever floor is higher.
func (b *Builder) isDust(pkScript []byte, value int64) bool {
	if value < b.DustLimit {
		return true
	}
	return txrules.IsDustAmount(btcutil.Amount(value), len(pkScript), txrules.DefaultRelayFeePerKb)
}

// plannedOutput is one planned output paired with the asset quantity (if
// any) the marker must assign to its position.
type plannedOutput struct {
	txOut    *wire.TxOut
	quantity uint64
}

// Issue creates an issuance output at to_script carrying amount units of a
// new asset (bound to issuance_script), followed by the marker, followed
// by bitcoin change. Inputs are drawn only from unspent outputs whose
// script equals params.IssuanceScript.
func (b *Builder) Issue(params IssuanceParams, metadata []byte, fees Fees) (*wire.MsgTx, error) {
	if len(params.ToScript) == 0 || len(params.IssuanceScript) == 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "to_script and issuance_script are required")
	}
	if b.isDust(params.ToScript, b.DustLimit) {
		return nil, ErrDustOutput
	}

	needed := b.DustLimit + int64(fees)
	selected, total, err := b.selectByScript(params.UnspentOutputs, params.IssuanceScript, needed)
	if err != nil {
		return nil, err
	}

	issuance := &plannedOutput{
		txOut:    wire.NewTxOut(b.DustLimit, params.ToScript),
		quantity: params.Amount,
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range selected {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}
	tx.AddTxOut(issuance.txOut)

	marker, err := (Marker{
		Version:    MarkerVersion,
		Quantities: []uint64{issuance.quantity},
		Metadata:   metadata,
	}).Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, marker))

	change := total - b.DustLimit - int64(fees)
	if change >= b.DustLimit {
		tx.AddTxOut(wire.NewTxOut(change, params.ChangeScript))
	}
	// sub-dust change is folded into fees by simply not emitting it.

	return tx, nil
}

// TransferAssets moves amount units of assetID from transferParams'
// colored inputs to transferParams.ToScript, returning asset change to
// transferParams.ChangeScript. An optional btcParams bundles a plain
// bitcoin transfer into the same transaction; it must only reference
// uncolored inputs.
func (b *Builder) TransferAssets(assetID AssetID, transferParams TransferParams, btcParams *TransferParams, fees Fees) (*wire.MsgTx, error) {
	if len(transferParams.ToScript) == 0 {
		return nil, errors.New("openassets: to_script is required")
	}

	assetInputs, assetTotalValue, assetTotalQty, err := b.selectAssetInputs(transferParams.UnspentOutputs, assetID, transferParams.Amount)
	if err != nil {
		return nil, err
	}
	assetChangeQty, err := subUint64(assetTotalQty, transferParams.Amount)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range assetInputs {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}

	pool := assetTotalValue

	var transferOutputs []plannedOutput
	transferOutputs = append(transferOutputs, plannedOutput{
		txOut:    wire.NewTxOut(b.DustLimit, transferParams.ToScript),
		quantity: transferParams.Amount,
	})
	pool -= b.DustLimit

	if assetChangeQty > 0 {
		if len(transferParams.ChangeScript) == 0 {
			return nil, errors.New("openassets: change_script is required when asset change is non-zero")
		}
		transferOutputs = append(transferOutputs, plannedOutput{
			txOut:    wire.NewTxOut(b.DustLimit, transferParams.ChangeScript),
			quantity: assetChangeQty,
		})
		pool -= b.DustLimit
	}

	var btcOutputs []plannedOutput
	required := int64(fees)
	if btcParams != nil && btcParams.Amount > 0 {
		required += int64(btcParams.Amount)
	}
	required -= pool
	if required < 0 {
		required = 0
	}

	var btcInputs []SpendableOutput
	if required > 0 {
		if btcParams == nil {
			return nil, &InsufficientFundsError{Required: required, Available: pool}
		}
		selected, total, err := b.selectUncolored(btcParams.UnspentOutputs, required)
		if err != nil {
			return nil, err
		}
		btcInputs = selected
		pool += total
	}
	for _, in := range btcInputs {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}

	if btcParams != nil && btcParams.Amount > 0 {
		btcOutputs = append(btcOutputs, plannedOutput{
			txOut: wire.NewTxOut(int64(btcParams.Amount), btcParams.ToScript),
		})
		pool -= int64(btcParams.Amount)
	}
	pool -= int64(fees)

	if pool < 0 {
		return nil, &InsufficientFundsError{Required: int64(fees) - assetTotalValue, Available: assetTotalValue}
	}
	if btcParams != nil && pool >= b.DustLimit {
		btcOutputs = append(btcOutputs, plannedOutput{
			txOut: wire.NewTxOut(pool, btcParams.ChangeScript),
		})
	}
	// sub-dust bitcoin change is folded into fees.

	quantities := make([]uint64, 0, len(transferOutputs))
	for _, out := range transferOutputs {
		quantities = append(quantities, out.quantity)
	}

	marker, err := (Marker{Version: MarkerVersion, Quantities: quantities}).Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, marker))
	for _, out := range transferOutputs {
		tx.AddTxOut(out.txOut)
	}
	for _, out := range btcOutputs {
		tx.AddTxOut(out.txOut)
	}

	return tx, nil
}

// TransferBitcoin moves amount satoshis to to_script using only uncolored
// inputs, returning change to change_script.
func (b *Builder) TransferBitcoin(params TransferParams, fees Fees) (*wire.MsgTx, error) {
	if len(params.ToScript) == 0 {
		return nil, errors.New("openassets: to_script is required")
	}
	if b.isDust(params.ToScript, int64(params.Amount)) {
		return nil, ErrDustOutput
	}

	needed := int64(params.Amount) + int64(fees)
	selected, total, err := b.selectUncolored(params.UnspentOutputs, needed)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range selected {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(int64(params.Amount), params.ToScript))

	change := total - needed
	if change >= b.DustLimit {
		tx.AddTxOut(wire.NewTxOut(change, params.ChangeScript))
	}

	return tx, nil
}

// Burn spends burnParams' colored inputs for assetID without assigning
// their units to any transfer output, so the unused units are dropped per
// the engine's trailing-unit rule. Any units not intended for burning are
// returned as ordinary asset change to burnParams.ChangeScript. Bitcoin
// change at or above the dust limit goes to burnParams.ChangeScript as a
// final uncolored output; below the dust limit, or with no ChangeScript, it
// is folded into fees.
func (b *Builder) Burn(assetID AssetID, burnParams TransferParams, fees Fees) (*wire.MsgTx, error) {
	assetInputs, assetTotalValue, assetTotalQty, err := b.selectAssetInputs(burnParams.UnspentOutputs, assetID, burnParams.Amount)
	if err != nil {
		return nil, err
	}
	burnQty := burnParams.Amount
	changeQty, err := subUint64(assetTotalQty, burnQty)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range assetInputs {
		tx.AddTxIn(wire.NewTxIn(&in.OutPoint, nil, nil))
	}

	pool := assetTotalValue
	var quantities []uint64
	var outputs []*wire.TxOut

	if changeQty > 0 {
		if len(burnParams.ChangeScript) == 0 {
			return nil, errors.New("openassets: change_script is required when asset change is non-zero")
		}
		outputs = append(outputs, wire.NewTxOut(b.DustLimit, burnParams.ChangeScript))
		quantities = append(quantities, changeQty)
		pool -= b.DustLimit
	}

	pool -= int64(fees)
	if pool < 0 {
		return nil, &InsufficientFundsError{Required: int64(fees), Available: assetTotalValue}
	}
	if pool >= b.DustLimit && len(burnParams.ChangeScript) > 0 {
		outputs = append(outputs, wire.NewTxOut(pool, burnParams.ChangeScript))
	}
	// sub-dust bitcoin change is folded into fees.

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

// selectByScript greedily selects unspent outputs whose script matches
// script, in the order given, until their summed value reaches target.
func (b *Builder) selectByScript(unspent []SpendableOutput, script []byte, target int64) ([]SpendableOutput, int64, error) {
	var selected []SpendableOutput
	var total int64
	for _, u := range unspent {
		if !bytes.Equal(u.Output.Script, script) {
			continue
		}
		selected = append(selected, u)
		total += u.Output.Value
		if total >= target {
			return selected, total, nil
		}
	}
	return nil, 0, &InsufficientFundsError{Required: target, Available: total}
}

// selectUncolored greedily selects unspent outputs carrying no asset, in
// the order given, until their summed value reaches target.
func (b *Builder) selectUncolored(unspent []SpendableOutput, target int64) ([]SpendableOutput, int64, error) {
	var selected []SpendableOutput
	var total int64
	for _, u := range unspent {
		if u.Output.HasAsset {
			continue
		}
		selected = append(selected, u)
		total += u.Output.Value
		if total >= target {
			return selected, total, nil
		}
	}
	return nil, 0, &InsufficientFundsError{Required: target, Available: total}
}

// selectAssetInputs greedily selects unspent outputs carrying assetID, in
// the order given, until their summed quantity reaches target. It returns
// the selected inputs, their summed satoshi value, and their summed asset
// quantity as a uint128: individual quantities are bounded to 2^63-1, but
// their sum across many inputs is not bounded to fit a uint64.
func (b *Builder) selectAssetInputs(unspent []SpendableOutput, assetID AssetID, target uint64) ([]SpendableOutput, int64, uint128.Uint128, error) {
	var selected []SpendableOutput
	var totalValue int64
	sum := uint128.From64(0)
	targetU128 := uint128.From64(target)
	for _, u := range unspent {
		if !u.Output.HasAsset || u.Output.AssetID != assetID {
			continue
		}
		selected = append(selected, u)
		totalValue += u.Output.Value
		sum = sum.Add(uint128.From64(u.Output.Quantity))
		if sum.Cmp(targetU128) >= 0 {
			return selected, totalValue, sum, nil
		}
	}
	available := uint64(0)
	if sum.IsUint64() {
		available = sum.Uint64()
	}
	return nil, 0, uint128.Uint128{}, &InsufficientAssetsError{AssetID: assetID, Required: target, Available: available}
}

// subUint64 computes sum-amount and requires the result to fit a uint64,
// since every individual colored output quantity is bounded to 2^63-1.
func subUint64(sum uint128.Uint128, amount uint64) (uint64, error) {
	diff := sum.Sub(uint128.From64(amount))
	if !diff.IsUint64() {
		return 0, errors.Wrap(errs.OverflowUint64, "openassets: asset change does not fit in a single output")
	}
	return diff.Uint64(), nil
}
