package port

import (
	"context"
	"time"

	"github.com/bnema/vidflow/internal/domain"
)

type VideoStore interface {
	Create(ctx context.Context, v *domain.Video) error
	Get(ctx context.Context, id string) (*domain.Video, error)
	List(ctx context.Context) ([]*domain.Video, error)
	UpdateDetails(ctx context.Context, id, title, description string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error

	// Transition writes the lifecycle-owned fields of v only if the persisted
	// status still equals expected. It returns domain.ErrStatusConflict otherwise.
	Transition(ctx context.Context, v *domain.Video, expected domain.VideoStatus) error
	ListProcessing(ctx context.Context) ([]*domain.Video, error)
}
