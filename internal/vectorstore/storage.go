package vectorstore

import (
	"context"

	"docqa/internal/vectorstore/memory"
)

// Storage persists whole index generations. Build replaces the stored index
// atomically; readers of Load see either the previous or the new generation.
type Storage interface {
	Build(ctx context.Context, index *memory.Index) error
	// Load returns (nil, nil) when no index has been built yet.
	Load(ctx context.Context) (*memory.Index, error)
}
