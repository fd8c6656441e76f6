// Package postgres persists colored outputs to Postgres, implementing
// openassets.OutputCache for deployments that need the cache to survive
// process restarts.
package postgres

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openassets-go/openassets/internal/openassets"
)

// OutputCache is a Postgres-backed openassets.OutputCache. Write-once-per-
// outpoint is enforced at the database layer with INSERT ... ON CONFLICT
// DO NOTHING: a second Put for an outpoint already stored is dropped. It
// does not coalesce concurrent lookups; that is done by the engine's
// singleflight group.
type OutputCache struct {
	pool *pgxpool.Pool
}

func NewOutputCache(pool *pgxpool.Pool) *OutputCache {
	return &OutputCache{pool: pool}
}

func (c *OutputCache) Get(ctx context.Context, txHash chainhash.Hash, index uint32) (*openassets.ColoredOutput, bool, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT script, value, has_asset, asset_id, quantity, category, metadata
		FROM openassets_colored_outputs
		WHERE tx_hash = $1 AND tx_index = $2
	`, txHash.String(), index)

	var (
		script, assetIDHex, metadataHex string
		value                           int64
		hasAsset                        bool
		quantity                        int64
		category                        int16
	)
	if err := row.Scan(&script, &value, &hasAsset, &assetIDHex, &quantity, &category, &metadataHex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "cannot query colored output")
	}

	output, err := decodeRow(script, value, hasAsset, assetIDHex, quantity, category, metadataHex)
	if err != nil {
		return nil, false, err
	}
	return output, true, nil
}

func (c *OutputCache) Put(ctx context.Context, txHash chainhash.Hash, index uint32, output openassets.ColoredOutput) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO openassets_colored_outputs
			(tx_hash, tx_index, script, value, has_asset, asset_id, quantity, category, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_hash, tx_index) DO NOTHING
	`,
		txHash.String(), index,
		hex.EncodeToString(output.Script), output.Value, output.HasAsset,
		output.AssetID.String(), int64(output.Quantity), int16(output.Category),
		hex.EncodeToString(output.Metadata),
	)
	if err != nil {
		return errors.Wrap(err, "cannot insert colored output")
	}
	return nil
}

func decodeRow(scriptHex string, value int64, hasAsset bool, assetIDHex string, quantity int64, category int16, metadataHex string) (*openassets.ColoredOutput, error) {
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode script")
	}
	metadata, err := hex.DecodeString(metadataHex)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode metadata")
	}

	output := &openassets.ColoredOutput{
		Script:   script,
		Value:    value,
		HasAsset: hasAsset,
		Quantity: uint64(quantity),
		Category: openassets.OutputCategory(category),
		Metadata: metadata,
	}

	if hasAsset {
		assetIDBytes, err := hex.DecodeString(assetIDHex)
		if err != nil || len(assetIDBytes) != 20 {
			return nil, errors.New("cannot decode asset_id")
		}
		copy(output.AssetID[:], assetIDBytes)
	}

	return output, nil
}
