package common

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Zero value of chainhash.Hash
var (
	ZeroHash = chainhash.Hash{}
	NullHash = ZeroHash
)
