package adapter

import (
	"context"
	"io"
)

// StoredObject is where an asset ended up.
type StoredObject struct {
	Key  string
	Path string // local path when the store is a directory, otherwise empty
	URL  string
	Size int64
}

// AssetStore persists produced bytes. Producers write through it so the
// coordinator only ever handles references.
type AssetStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error)
	URL(ctx context.Context, key string) (string, error)
}
