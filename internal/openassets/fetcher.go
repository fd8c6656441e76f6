package openassets

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
)

// TransactionFetcher resolves a transaction hash to its parsed transaction,
// the callback the coloring engine recurses through to color ancestor
// outputs. Absence (not an error) must be reported as ErrTransactionNotFound.
type TransactionFetcher interface {
	Fetch(ctx context.Context, txHash chainhash.Hash) (*wire.MsgTx, error)
}

// MapFetcher is an in-memory TransactionFetcher backed by a fixed map,
// suitable as the reference/test double described for the fetch callback.
type MapFetcher struct {
	mu  sync.RWMutex
	txs map[chainhash.Hash]*wire.MsgTx
}

func NewMapFetcher() *MapFetcher {
	return &MapFetcher{txs: make(map[chainhash.Hash]*wire.MsgTx)}
}

func (f *MapFetcher) Add(tx *wire.MsgTx) chainhash.Hash {
	hash := tx.TxHash()
	f.mu.Lock()
	f.txs[hash] = tx
	f.mu.Unlock()
	return hash
}

func (f *MapFetcher) Fetch(_ context.Context, txHash chainhash.Hash) (*wire.MsgTx, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tx, ok := f.txs[txHash]
	if !ok {
		return nil, errors.Wrapf(ErrTransactionNotFound, "tx %s", txHash)
	}
	return tx, nil
}

// RPCFetcher fetches transactions from a Bitcoin Core node over RPC.
type RPCFetcher struct {
	client *rpcclient.Client
}

func NewRPCFetcher(client *rpcclient.Client) *RPCFetcher {
	return &RPCFetcher{client: client}
}

func (f *RPCFetcher) Fetch(_ context.Context, txHash chainhash.Hash) (*wire.MsgTx, error) {
	hash := txHash
	tx, err := f.client.GetRawTransaction(&hash)
	if err != nil {
		if rpcErr, ok := err.(*btcjson.RPCError); ok && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return nil, errors.Wrapf(ErrTransactionNotFound, "tx %s", txHash)
		}
		return nil, errors.Wrapf(err, "cannot fetch tx %s from node", txHash)
	}
	return tx.MsgTx(), nil
}
