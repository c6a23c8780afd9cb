package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Persisted keys.
const (
	KeyConsumption    = "QAQC_CONSUMPTION_V1"
	KeyLastSubmission = "QAQC_LAST_SUBMISSION"
	KeyAssetList      = "QAQC_ASSET_LIST"
	KeyFormDraft      = "QAQC_FORM_DRAFT"
	KeyCustomAssets   = "CUSTOM_ASSETS_V1"
)

var (
	ErrInvalidKey = errors.New("invalid_key")
	ErrNotFound   = errors.New("not_found")
)

// Store is a string key-value store. Values are opaque to the store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Locker serializes writers sharing one store. Release must be called with the
// token returned by Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) error
}

func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}

// GetJSON decodes the value at key into dst. A missing key reports false with a
// nil error; a value that does not decode is returned as an error.
func GetJSON(ctx context.Context, store Store, key string, dst any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, store Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(data))
}
