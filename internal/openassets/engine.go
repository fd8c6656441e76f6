package openassets

import (
	"context"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/openassets-go/openassets/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Engine is the recursive coloring interpreter: given a transaction-fetch
// callback and an output cache, it resolves the asset id and quantity of
// any output by walking its ancestor transactions per the Open Assets
// marker/tape rules.
type Engine struct {
	fetcher TransactionFetcher
	cache   OutputCache

	// group coalesces concurrent ColorOutput calls for the same outpoint
	// into a single recursive computation, satisfying the at-most-once
	// guarantee independently of which OutputCache implementation is
	// plugged in.
	group singleflight.Group
}

func NewEngine(fetcher TransactionFetcher, cache OutputCache) *Engine {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Engine{fetcher: fetcher, cache: cache}
}

// Color resolves the colored outputs of the transaction identified by
// txHash, fetching it via the engine's TransactionFetcher.
func (e *Engine) Color(ctx context.Context, txHash chainhash.Hash) ([]ColoredOutput, error) {
	tx, err := e.fetcher.Fetch(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return e.colorTransaction(ctx, tx)
}

// ColorRawTransaction colors the outputs of a transaction supplied
// directly by the caller, without requiring it to be resolvable through
// the engine's TransactionFetcher. Its inputs still recurse through the
// fetcher/cache as usual.
func (e *Engine) ColorRawTransaction(ctx context.Context, tx *wire.MsgTx) ([]ColoredOutput, error) {
	return e.colorTransaction(ctx, tx)
}

// ColorOutput resolves a single output by outpoint, using the cache and
// coalescing group before falling back to a full colorTransaction of its
// owning transaction.
func (e *Engine) ColorOutput(ctx context.Context, out OutPoint) (ColoredOutput, error) {
	if cached, ok, err := e.cache.Get(ctx, out.Hash, out.Index); err != nil {
		return ColoredOutput{}, err
	} else if ok {
		return *cached, nil
	}

	key := out.Hash.String() + ":" + strconv.FormatUint(uint64(out.Index), 10)
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		// Re-check the cache: another goroutine may have finished the
		// same computation while we were waiting to enter the group.
		if cached, ok, err := e.cache.Get(ctx, out.Hash, out.Index); err != nil {
			return nil, err
		} else if ok {
			return *cached, nil
		}

		tx, err := e.fetcher.Fetch(ctx, out.Hash)
		if err != nil {
			return nil, err
		}
		outputs, err := e.colorTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		if int(out.Index) >= len(outputs) {
			return nil, errors.Errorf("openassets: output index %d out of range for tx %s", out.Index, out.Hash)
		}

		for i, output := range outputs {
			if err := e.cache.Put(ctx, out.Hash, uint32(i), output); err != nil {
				return nil, err
			}
		}
		return outputs[out.Index], nil
	})
	if err != nil {
		return ColoredOutput{}, err
	}
	return v.(ColoredOutput), nil
}

type tapeUnit struct {
	assetID  AssetID
	quantity uint64
}

// tapeCursor walks the concatenated sequence of non-zero asset units
// produced by a transaction's colored inputs, consuming units FIFO and
// enforcing that every single transfer output's demand is satisfied by a
// contiguous run of identical asset units.
type tapeCursor struct {
	entries []tapeUnit
	idx     int
	used    uint64
}

func (c *tapeCursor) consume(q uint64) (AssetID, MarkerFlaw) {
	var assetID AssetID
	gotAssetID := false
	remaining := q
	for remaining > 0 {
		if c.idx >= len(c.entries) {
			return AssetID{}, FlawInsufficientUnits
		}
		entry := c.entries[c.idx]
		avail := entry.quantity - c.used
		if avail == 0 {
			c.idx++
			c.used = 0
			continue
		}
		if !gotAssetID {
			assetID = entry.assetID
			gotAssetID = true
		} else if assetID != entry.assetID {
			return AssetID{}, FlawGroupingViolation
		}
		take := avail
		if take > remaining {
			take = remaining
		}
		c.used += take
		remaining -= take
	}
	return assetID, FlawNone
}

// colorTransaction implements §4.3/§4.4: locate the marker, split outputs
// into issuance/marker/transfer regions, color issuance outputs from the
// first input's script, and color transfer outputs by consuming the tape
// of colored input units. Any structural violation downgrades the whole
// transaction to uncolored, never a partial result.
func (e *Engine) colorTransaction(ctx context.Context, tx *wire.MsgTx) ([]ColoredOutput, error) {
	n := len(tx.TxOut)
	outputs := make([]ColoredOutput, n)
	for i, out := range tx.TxOut {
		outputs[i] = ColoredOutput{Script: out.PkScript, Value: out.Value}
	}

	k, marker, flaw := findMarker(tx.TxOut)
	if k < 0 {
		if flaw != FlawNone {
			logger.DebugContext(ctx, "transaction has no valid marker",
				"tx", tx.TxHash().String(), "flaw", flaw.String())
		}
		return outputs, nil
	}
	if uint64(len(marker.Quantities)) > uint64(n-1) {
		// marker's quantity list longer than there are non-marker outputs
		// to receive it: invalid marker, no-marker fallback.
		logger.DebugContext(ctx, "transaction has no valid marker",
			"tx", tx.TxHash().String(), "flaw", FlawTooManyQuantities.String())
		return outputs, nil
	}

	for i := 0; i < n; i++ {
		outputs[i].Metadata = marker.Metadata
		switch {
		case i < k:
			outputs[i].Category = CategoryIssuance
		case i > k && i-1 < len(marker.Quantities):
			outputs[i].Category = CategoryTransfer
		default:
			// the marker itself, or a transfer-region output with no slot
			// in the marker's quantity list.
			outputs[i].Category = CategoryUncolored
		}
	}

	issuanceQuantities := marker.Quantities
	if len(issuanceQuantities) > k {
		issuanceQuantities = issuanceQuantities[:k]
	}
	transferQuantities := []uint64(nil)
	if len(marker.Quantities) > k {
		transferQuantities = marker.Quantities[k:]
	}

	// Issuance coloring: asset id is derived from the script referenced by
	// the transaction's first input, regardless of how many issuance slots
	// the marker actually uses.
	if k > 0 {
		issuanceScript, err := e.firstInputScript(ctx, tx)
		if err != nil {
			return nil, err
		}
		assetID := DeriveAssetID(issuanceScript)
		for i := 0; i < k; i++ {
			var quantity uint64
			if i < len(issuanceQuantities) {
				quantity = issuanceQuantities[i]
			}
			if quantity > 0 {
				outputs[i].AssetID = assetID
				outputs[i].HasAsset = true
				outputs[i].Quantity = quantity
			}
		}
	}

	// Transfer coloring needs the tape of colored input units only when
	// at least one transfer output demands a non-zero quantity.
	anyTransferDemand := false
	for _, q := range transferQuantities {
		if q > 0 {
			anyTransferDemand = true
			break
		}
	}
	if !anyTransferDemand {
		return outputs, nil
	}

	cursor, err := e.buildTape(ctx, tx.TxIn)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(transferQuantities); i++ {
		q := transferQuantities[i]
		if q == 0 {
			continue
		}
		outputIndex := k + 1 + i
		assetID, flaw := cursor.consume(q)
		if flaw != FlawNone {
			// entire transaction downgrades to no-marker on any grouping
			// or insufficiency violation.
			logger.DebugContext(ctx, "transaction downgraded to uncolored",
				"tx", tx.TxHash().String(), "output", outputIndex, "flaw", flaw.String())
			return e.uncoloredOutputs(tx), nil
		}
		outputs[outputIndex].AssetID = assetID
		outputs[outputIndex].HasAsset = true
		outputs[outputIndex].Quantity = q
	}

	return outputs, nil
}

// uncoloredOutputs returns the all-uncolored result used whenever a marker
// is discovered to be invalid after partial work has already begun.
func (e *Engine) uncoloredOutputs(tx *wire.MsgTx) []ColoredOutput {
	outputs := make([]ColoredOutput, len(tx.TxOut))
	for i, out := range tx.TxOut {
		outputs[i] = ColoredOutput{Script: out.PkScript, Value: out.Value}
	}
	return outputs
}

func (e *Engine) firstInputScript(ctx context.Context, tx *wire.MsgTx) ([]byte, error) {
	if len(tx.TxIn) == 0 {
		return nil, errors.New("openassets: issuance transaction has no inputs")
	}
	prevOut := tx.TxIn[0].PreviousOutPoint
	prevTx, err := e.fetcher.Fetch(ctx, prevOut.Hash)
	if err != nil {
		return nil, err
	}
	if int(prevOut.Index) >= len(prevTx.TxOut) {
		return nil, errors.Errorf("openassets: previous outpoint index %d out of range for tx %s", prevOut.Index, prevOut.Hash)
	}
	return prevTx.TxOut[prevOut.Index].PkScript, nil
}

// buildTape colors every input's previous output (recursively, via the
// cache/coalescing path) and concatenates the non-zero, asset-carrying
// results into the tape transfer outputs consume from.
func (e *Engine) buildTape(ctx context.Context, txIns []*wire.TxIn) (*tapeCursor, error) {
	entries := make([]tapeUnit, 0, len(txIns))
	for _, in := range txIns {
		colored, err := e.ColorOutput(ctx, in.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		if colored.HasAsset && colored.Quantity > 0 {
			entries = append(entries, tapeUnit{assetID: colored.AssetID, quantity: colored.Quantity})
		}
	}
	return &tapeCursor{entries: entries}, nil
}
