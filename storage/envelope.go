package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// HeightScoped is the sealed JSON form of artifacts tied to a block height,
// such as the validator set the light client last verified.
type HeightScoped struct {
	Height  uint64 `json:"height"`
	Version uint32 `json:"version"`
	Payload []byte `json:"payload"`
}

// SealHeightScoped seals payload together with the height and version it belongs to.
func SealHeightScoped(ctx context.Context, store interfaces.SealedStore, name string, height uint64, version uint32, payload []byte) error {
	raw, err := json.Marshal(HeightScoped{Height: height, Version: version, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return store.Seal(ctx, name, raw)
}

// UnsealHeightScoped loads a height scoped artifact. A version other than
// the expected one is treated as corruption.
func UnsealHeightScoped(ctx context.Context, store interfaces.SealedStore, name string, version uint32) (*HeightScoped, error) {
	raw, err := store.Unseal(ctx, name)
	if err != nil {
		return nil, err
	}

	var hs HeightScoped
	if err := json.Unmarshal(raw, &hs); err != nil {
		return nil, fmt.Errorf("%w: %s is not a height scoped envelope", interfaces.ErrSealedCorrupt, name)
	}
	if hs.Version != version {
		return nil, fmt.Errorf("%w: %s has version %d, expected %d", interfaces.ErrSealedCorrupt, name, hs.Version, version)
	}
	return &hs, nil
}
