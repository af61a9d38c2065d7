package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "vidflow.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers, which also makes the conditional
	// UPDATE in Transition race-free within the process.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const videoColumns = `id, title, description, original_filename, status, job_id, source_url,
	thumbnail, duration, video_info, formats, created_at, updated_at`

func (s *Store) Create(ctx context.Context, v *domain.Video) error {
	info, formats, err := encodeMedia(v)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Title, v.Description, v.OriginalFilename, string(v.Status), v.JobID, v.SourceURL,
		v.Thumbnail, v.Duration, info, formats, v.CreatedAt.UnixNano(), v.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	if n == 0 {
		return domain.ErrDuplicateID
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	return v, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Video, error) {
	return s.query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id ASC`)
}

func (s *Store) ListProcessing(ctx context.Context) ([]*domain.Video, error) {
	return s.query(ctx, `SELECT `+videoColumns+` FROM videos
		WHERE status = ? AND job_id != '' ORDER BY created_at ASC`, string(domain.VideoStatusProcessing))
}

func (s *Store) UpdateDetails(ctx context.Context, id, title, description string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE videos SET title = ?, description = ?, updated_at = MAX(created_at, ?)
		WHERE id = ?`, title, description, updatedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update video %s: %w", id, err)
	}
	return requireRow(res, domain.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	return requireRow(res, domain.ErrNotFound)
}

func (s *Store) Transition(ctx context.Context, v *domain.Video, expected domain.VideoStatus) error {
	if !expected.CanTransitionTo(v.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, v.Status)
	}
	info, formats, err := encodeMedia(v)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE videos SET status = ?, job_id = ?, source_url = ?, thumbnail = ?,
		duration = ?, video_info = ?, formats = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(v.Status), v.JobID, v.SourceURL, v.Thumbnail, v.Duration, info, formats, v.UpdatedAt.UnixNano(),
		v.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("transition video %s: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition video %s: %w", v.ID, err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or its status moved on.
	if _, err := s.Get(ctx, v.ID); err != nil {
		return err
	}
	return domain.ErrStatusConflict
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*domain.Video, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*domain.Video, error) {
	var (
		v                    domain.Video
		status               string
		info, formats        string
		createdAt, updatedAt int64
	)
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.OriginalFilename, &status, &v.JobID, &v.SourceURL,
		&v.Thumbnail, &v.Duration, &info, &formats, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.Status = domain.VideoStatus(status)
	v.CreatedAt = time.Unix(0, createdAt).UTC()
	v.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if info != "" {
		v.VideoInfo = &domain.VideoInfo{}
		if err := json.Unmarshal([]byte(info), v.VideoInfo); err != nil {
			return nil, fmt.Errorf("decode video_info: %w", err)
		}
	}
	v.Formats = []domain.Format{}
	if formats != "" {
		if err := json.Unmarshal([]byte(formats), &v.Formats); err != nil {
			return nil, fmt.Errorf("decode formats: %w", err)
		}
	}
	return &v, nil
}

func encodeMedia(v *domain.Video) (info string, formats string, err error) {
	if v.VideoInfo != nil {
		b, err := json.Marshal(v.VideoInfo)
		if err != nil {
			return "", "", fmt.Errorf("encode video_info: %w", err)
		}
		info = string(b)
	}
	list := v.Formats
	if list == nil {
		list = []domain.Format{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("encode formats: %w", err)
	}
	return info, string(b), nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

var _ port.VideoStore = (*Store)(nil)
