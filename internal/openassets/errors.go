package openassets

import (
	"fmt"

	"github.com/openassets-go/openassets/common/errs"
)

const (
	// ErrTransactionNotFound is returned when the fetch callback has no
	// transaction for a requested hash. Fatal to the call that caused it.
	ErrTransactionNotFound = errs.ErrorKind("openassets: transaction not found")
	// ErrInvalidMarker is the internal sentinel for a structurally invalid
	// marker payload. It is never returned from Color; it is only used
	// internally to decide that a transaction has no marker.
	ErrInvalidMarker = errs.ErrorKind("openassets: invalid marker")
	// ErrDustOutput is returned when the primary destination output of a
	// builder operation would itself fall below the dust limit.
	ErrDustOutput = errs.ErrorKind("openassets: output below dust limit")
)

// InsufficientAssetsError reports that the selected inputs did not carry
// enough units of AssetID to satisfy the requested transfer.
type InsufficientAssetsError struct {
	AssetID   AssetID
	Required  uint64
	Available uint64
}

func (e *InsufficientAssetsError) Error() string {
	return fmt.Sprintf("openassets: insufficient units of asset %s: required %d, available %d",
		e.AssetID, e.Required, e.Available)
}

// InsufficientFundsError reports that the selected inputs did not carry
// enough satoshis to satisfy fees, dust floors, and the requested amount.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("openassets: insufficient funds: required %d sat, available %d sat",
		e.Required, e.Available)
}

// MarkerFlaw is a diagnostic reason a candidate OP_RETURN output was not
// accepted as the marker, or why a transaction was downgraded to uncolored.
// It is never an error return value: the coloring engine logs it at debug
// level for observability.
type MarkerFlaw int

const (
	FlawNone MarkerFlaw = iota
	// FlawBadScript means the output's script is not a well-formed
	// OP_RETURN push (wrong opcode, truncated push, non-pushdata opcode).
	FlawBadScript
	// FlawBadMagic means the pushed payload does not start with the Open
	// Assets magic, or the version is not 1.
	FlawBadMagic
	// FlawBadVarInt means the quantity-count or metadata-length CompactSize
	// varint was malformed.
	FlawBadVarInt
	// FlawBadQuantity means an individual quantity failed to LEB128-decode.
	FlawBadQuantity
	// FlawMetadataLength means the bytes following the metadata-length
	// varint are not exactly that many bytes long: either truncated, or
	// with trailing bytes left over after the declared metadata.
	FlawMetadataLength
	// FlawTooManyQuantities means the quantity list is longer than the
	// number of non-marker outputs available to receive them.
	FlawTooManyQuantities
	// FlawGroupingViolation means a transfer output's demanded units span
	// more than one asset id in the input tape.
	FlawGroupingViolation
	// FlawInsufficientUnits means the transfer outputs demand more units
	// than the inputs supply.
	FlawInsufficientUnits
)

var flawMessages = map[MarkerFlaw]string{
	FlawNone:              "",
	FlawBadScript:         "non-pushdata or malformed OP_RETURN script",
	FlawBadMagic:          "payload does not start with Open Assets magic/version",
	FlawBadVarInt:         "malformed CompactSize varint in payload",
	FlawBadQuantity:       "malformed LEB128 quantity",
	FlawMetadataLength:    "metadata length does not match remaining payload bytes",
	FlawTooManyQuantities: "more quantities than available outputs",
	FlawGroupingViolation: "transfer output spans more than one asset",
	FlawInsufficientUnits: "transfer outputs demand more units than inputs supply",
}

func (f MarkerFlaw) String() string {
	return flawMessages[f]
}
