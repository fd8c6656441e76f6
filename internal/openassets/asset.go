package openassets

import "github.com/btcsuite/btcd/btcutil"

// DeriveAssetID computes the asset identifier bound to an issuing script:
// ripemd160(sha256(script)), i.e. btcutil.Hash160.
func DeriveAssetID(issuanceScript []byte) AssetID {
	var id AssetID
	copy(id[:], btcutil.Hash160(issuanceScript))
	return id
}
