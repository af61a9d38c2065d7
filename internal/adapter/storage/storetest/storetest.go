// Package storetest holds the behaviour every port.VideoStore backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newVideo(id string, offset time.Duration) *domain.Video {
	return domain.NewVideo(id, "title "+id, "desc", id+".mp4", base.Add(offset))
}

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) port.VideoStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)

		require.NoError(t, store.Create(ctx, video))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, video, got)
	})

	t.Run("create rejects duplicate id", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.Create(ctx, newVideo("a", 0)))

		err := store.Create(ctx, newVideo("a", time.Second))

		assert.ErrorIs(t, err, domain.ErrDuplicateID)
	})

	t.Run("get returns ErrNotFound", func(t *testing.T) {
		store := open(t)

		got, err := store.Get(ctx, "missing")

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, got)
	})

	t.Run("list orders by createdAt descending", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.Create(ctx, newVideo("old", 0)))
		require.NoError(t, store.Create(ctx, newVideo("new", 2*time.Hour)))
		require.NoError(t, store.Create(ctx, newVideo("mid", time.Hour)))

		list, err := store.List(ctx)

		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "new", list[0].ID)
		assert.Equal(t, "mid", list[1].ID)
		assert.Equal(t, "old", list[2].ID)
	})

	t.Run("list on empty store", func(t *testing.T) {
		store := open(t)

		list, err := store.List(ctx)

		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("update details touches only title description updatedAt", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		video.MarkAsProcessing("job-1", base.Add(time.Second))
		require.NoError(t, store.Create(ctx, video))

		later := base.Add(time.Hour)
		require.NoError(t, store.UpdateDetails(ctx, "a", "renamed", "new desc", later))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, "new desc", got.Description)
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, domain.VideoStatusProcessing, got.Status)
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, video.CreatedAt, got.CreatedAt)
	})

	t.Run("update details on missing video", func(t *testing.T) {
		store := open(t)

		err := store.UpdateDetails(ctx, "missing", "t", "d", base)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes record", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.Create(ctx, newVideo("a", 0)))

		require.NoError(t, store.Delete(ctx, "a"))

		_, err := store.Get(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "a"), domain.ErrNotFound)
	})

	t.Run("transition applies when status matches", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		require.NoError(t, store.Create(ctx, video))

		next := video.Clone()
		next.MarkAsProcessing("job-42", base.Add(time.Second))
		require.NoError(t, store.Transition(ctx, next, domain.VideoStatusUploading))

		ready := next.Clone()
		ready.MarkAsReady([]domain.Format{
			{Quality: "480p", URL: "https://cdn/480.mp4", Size: 10, Bitrate: 1200000},
			{Quality: "720p", URL: "https://cdn/720.mp4", Size: 20, Bitrate: 2500000},
		}, "https://cdn/thumb.jpg", 42.5, domain.VideoInfo{Width: 1280, Height: 720, Codec: "h264", FPS: 29.97}, base.Add(time.Minute))
		require.NoError(t, store.Transition(ctx, ready, domain.VideoStatusProcessing))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, ready, got)
	})

	t.Run("transition conflicts when status moved on", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		video.MarkAsProcessing("job-42", base.Add(time.Second))
		require.NoError(t, store.Create(ctx, video))

		ready := video.Clone()
		ready.MarkAsReady([]domain.Format{{Quality: "480p"}}, "thumb", 1, domain.VideoInfo{}, base.Add(time.Minute))
		require.NoError(t, store.Transition(ctx, ready, domain.VideoStatusProcessing))

		failed := video.Clone()
		failed.MarkAsFailed(base.Add(2 * time.Minute))
		err := store.Transition(ctx, failed, domain.VideoStatusProcessing)

		assert.ErrorIs(t, err, domain.ErrStatusConflict)
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, domain.VideoStatusReady, got.Status, "terminal state must not be overwritten")
		assert.Len(t, got.Formats, 1)
	})

	t.Run("transition rejects edges outside the lifecycle", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		require.NoError(t, store.Create(ctx, video))

		ready := video.Clone()
		ready.Status = domain.VideoStatusReady

		err := store.Transition(ctx, ready, domain.VideoStatusUploading)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("transition on missing video", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		video.MarkAsProcessing("job-1", base)

		err := store.Transition(ctx, video, domain.VideoStatusUploading)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list processing returns only in-flight records with a job", func(t *testing.T) {
		store := open(t)

		inflight := newVideo("inflight", 0)
		inflight.MarkAsProcessing("job-1", base)
		noJob := newVideo("nojob", time.Second)
		noJob.Status = domain.VideoStatusProcessing
		done := newVideo("done", 2*time.Second)
		done.MarkAsProcessing("job-2", base.Add(2*time.Second))
		done.MarkAsReady(nil, "", 0, domain.VideoInfo{}, base.Add(3*time.Second))
		uploading := newVideo("uploading", 3*time.Second)

		for _, v := range []*domain.Video{inflight, noJob, done, uploading} {
			require.NoError(t, store.Create(ctx, v))
		}

		list, err := store.ListProcessing(ctx)

		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "inflight", list[0].ID)
	})

	t.Run("concurrent transitions apply exactly once", func(t *testing.T) {
		store := open(t)
		video := newVideo("a", 0)
		video.MarkAsProcessing("job-42", base)
		require.NoError(t, store.Create(ctx, video))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			applied   int
			conflicts int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ready := video.Clone()
				ready.MarkAsReady([]domain.Format{{Quality: "720p"}}, "t", 1, domain.VideoInfo{}, base.Add(time.Minute))
				err := store.Transition(ctx, ready, domain.VideoStatusProcessing)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					applied++
				case errors.Is(err, domain.ErrStatusConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, applied)
		assert.Equal(t, 7, conflicts)
	})
}
