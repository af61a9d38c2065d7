package port

import (
	"context"
	"io"
	"time"

	"github.com/bnema/vidflow/internal/domain"
)

// StorageProvider is one object-storage backend.
type StorageProvider interface {
	Name() domain.ProviderName
	Put(ctx context.Context, key string, content io.Reader, opts domain.PutOptions) (*domain.StoredObject, error)
	Delete(ctx context.Context, key string) error
	// Sign returns a time-limited read URL, or a CapabilityUnsupported error.
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
	// StreamURL is pure templating and never touches the network.
	StreamURL(videoID, quality string) domain.StreamURL
}
