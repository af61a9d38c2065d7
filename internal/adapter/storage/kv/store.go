// Package kv is a VideoStore on top of an embedded pebble database.
// Records are JSON documents keyed by "video/<id>".
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/cockroachdb/pebble"
)

const keyPrefix = "video/"

type Store struct {
	// mu serializes read-modify-write sequences; pebble itself has no
	// compare-and-set primitive.
	mu sync.Mutex
	db *pebble.DB
}

func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func videoKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func (s *Store) Create(_ context.Context, v *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(v.ID); err == nil {
		return domain.ErrDuplicateID
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.save(v)
}

func (s *Store) Get(_ context.Context, id string) (*domain.Video, error) {
	return s.load(id)
}

func (s *Store) List(_ context.Context) ([]*domain.Video, error) {
	videos, err := s.scan(func(*domain.Video) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

func (s *Store) ListProcessing(_ context.Context) ([]*domain.Video, error) {
	videos, err := s.scan(func(v *domain.Video) bool {
		return v.Status == domain.VideoStatusProcessing && v.JobID != ""
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})
	return videos, nil
}

func (s *Store) UpdateDetails(_ context.Context, id, title, description string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.load(id)
	if err != nil {
		return err
	}
	v.Title = title
	v.Description = description
	v.UpdatedAt = updatedAt
	if v.UpdatedAt.Before(v.CreatedAt) {
		v.UpdatedAt = v.CreatedAt
	}
	return s.save(v)
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(id); err != nil {
		return err
	}
	if err := s.db.Delete(videoKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	return nil
}

func (s *Store) Transition(_ context.Context, v *domain.Video, expected domain.VideoStatus) error {
	if !expected.CanTransitionTo(v.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, v.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(v.ID)
	if err != nil {
		return err
	}
	if current.Status != expected {
		return domain.ErrStatusConflict
	}

	// Only lifecycle-owned fields move; details edited meanwhile are kept.
	current.Status = v.Status
	current.JobID = v.JobID
	current.SourceURL = v.SourceURL
	current.Thumbnail = v.Thumbnail
	current.Duration = v.Duration
	current.VideoInfo = v.VideoInfo
	current.Formats = v.Formats
	current.UpdatedAt = v.UpdatedAt
	return s.save(current)
}

func (s *Store) load(id string) (*domain.Video, error) {
	data, closer, err := s.db.Get(videoKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	defer func() { _ = closer.Close() }()

	return decode(data)
}

func (s *Store) save(v *domain.Video) error {
	if v.Formats == nil {
		v.Formats = []domain.Format{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode video %s: %w", v.ID, err)
	}
	if err := s.db.Set(videoKey(v.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("put video %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) scan(keep func(*domain.Video) bool) ([]*domain.Video, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("video0"), // '0' sorts right after '/'
	})
	if err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	defer func() { _ = iter.Close() }()

	var videos []*domain.Video
	for iter.First(); iter.Valid(); iter.Next() {
		v, err := decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if keep(v) {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// decode copies out of pebble-owned memory before unmarshalling.
func decode(data []byte) (*domain.Video, error) {
	buf := make([]byte, len(data))
	copy(buf, data)

	var v domain.Video
	if err := json.Unmarshal(buf, &v); err != nil {
		return nil, err
	}
	if v.Formats == nil {
		v.Formats = []domain.Format{}
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return &v, nil
}

var _ port.VideoStore = (*Store)(nil)
