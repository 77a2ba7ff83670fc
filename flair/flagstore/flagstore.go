// Sets of string flags per key. The engine records the reports it has filed here (keyed by forum item id),
// so a rescan never files the same report twice.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}

// Has reports whether flag is set on key.
func Has(ctx context.Context, fs FlagStore, key, flag string) (bool, error) {
	flags, err := fs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	for _, f := range flags {
		if f == flag {
			return true, nil
		}
	}
	return false, nil
}
