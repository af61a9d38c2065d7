package port

import (
	"context"
	"io"

	"github.com/bnema/vidflow/internal/domain"
)

// Engine is the external encoding service. Submit returns as soon as the job
// is accepted; encoding continues out of band.
type Engine interface {
	Submit(ctx context.Context, filename string, content io.Reader) (jobID string, err error)
	Status(ctx context.Context, jobID string) (*domain.JobPayload, error)
	Health(ctx context.Context) error
}
