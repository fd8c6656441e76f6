// Package openassets implements the coloring engine and transaction builder
// of the Open Assets protocol: deriving asset identifiers and quantities for
// Bitcoin transaction outputs, and constructing unsigned transactions that
// issue, transfer, swap, or burn those assets.
package openassets

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
)

// AssetID is the 20-byte identifier of an Open Assets asset: Hash160 of the
// script of the first input of the transaction that issued it.
type AssetID [20]byte

func (id AssetID) String() string {
	return hex.EncodeToString(id[:])
}

func (id AssetID) IsZero() bool {
	return id == AssetID{}
}

// OutputCategory classifies a transaction output relative to the marker
// output found (or not found) in its own transaction.
type OutputCategory int

const (
	// CategoryUncolored carries no asset: either there is no valid marker in
	// the transaction, the output is the marker itself, or it is positioned
	// after the marker but falls past the end of the marker's quantity list.
	CategoryUncolored OutputCategory = iota
	// CategoryIssuance is an output positioned before the marker.
	CategoryIssuance
	// CategoryTransfer is an output positioned after the marker that has a
	// slot in the marker's quantity list.
	CategoryTransfer
)

func (c OutputCategory) String() string {
	switch c {
	case CategoryIssuance:
		return "issuance"
	case CategoryTransfer:
		return "transfer"
	default:
		return "uncolored"
	}
}

// ColoredOutput is a Bitcoin output augmented with the Open Assets
// attributes computed for it by the coloring engine.
type ColoredOutput struct {
	Script   []byte
	Value    int64
	AssetID  AssetID // zero value means absent
	HasAsset bool
	Quantity uint64
	Category OutputCategory
	// Metadata is only meaningful on the marker output itself, but is
	// carried on every ColoredOutput of a transaction whose marker is
	// accepted, for convenience.
	Metadata []byte
}

// OutPoint identifies a transaction output by its transaction hash and
// output index. Alias of the wire package's type so cache keys interop
// directly with parsed transactions.
type OutPoint = wire.OutPoint

// SpendableOutput pairs a ColoredOutput with the outpoint that identifies it.
// Owned by the caller of the builder; the builder never mutates these.
type SpendableOutput struct {
	OutPoint OutPoint
	Output   ColoredOutput
}

// TransferParams describes a single-destination value movement, shared by
// both asset transfers and pure bitcoin transfers.
type TransferParams struct {
	UnspentOutputs []SpendableOutput
	ToScript       []byte
	ChangeScript   []byte
	Amount         uint64
}

// IssuanceParams describes an asset issuance: coins are drawn only from
// unspent outputs whose script equals IssuanceScript, since the asset id is
// bound to that script.
type IssuanceParams struct {
	UnspentOutputs  []SpendableOutput
	IssuanceScript  []byte
	ToScript        []byte
	ChangeScript    []byte
	Amount          uint64
}

// Fees is the fixed satoshi fee a builder operation must pay.
type Fees int64
