package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported video format")
	ErrNotReady          = errors.New("video is not ready for playback")
)

// IntakeRequest describes an upload already spooled to TempPath.
type IntakeRequest struct {
	Title            string
	Description      string
	OriginalFilename string
	TempPath         string
}

type VideoService struct {
	store     port.VideoStore
	orch      *Orchestrator
	storage   *StorageService
	uploadDir string
	archive   bool
	newID     func() string
	now       func() time.Time
}

func NewVideoService(store port.VideoStore, orch *Orchestrator, storage *StorageService, dataDir string, archiveOriginals bool) *VideoService {
	return &VideoService{
		store:     store,
		orch:      orch,
		storage:   storage,
		uploadDir: filepath.Join(dataDir, "uploads"),
		archive:   archiveOriginals,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UploadDir is where uploads are spooled before dispatch.
func (s *VideoService) UploadDir() string {
	return s.uploadDir
}

// Intake creates an uploading record for the spooled file and dispatches it.
// A DispatchFailure is returned together with the record, now in error.
func (s *VideoService) Intake(ctx context.Context, req IntakeRequest) (*domain.Video, error) {
	ext := strings.ToLower(filepath.Ext(req.OriginalFilename))
	if !domain.IsAllowedVideoExt(ext) {
		_ = os.Remove(req.TempPath)
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		_ = os.Remove(req.TempPath)
		logger.Error.Printf("failed to create upload directory: %v", err)
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	id := s.newID()
	localPath := filepath.Join(s.uploadDir, id+ext)
	if err := os.Rename(req.TempPath, localPath); err != nil {
		_ = os.Remove(req.TempPath)
		logger.Error.Printf("failed to save upload %s: %v", logger.SanitizeForLog(req.OriginalFilename), err)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	v := domain.NewVideo(id, req.Title, req.Description, req.OriginalFilename, s.now())
	if s.archive {
		v.SourceURL = s.archiveOriginal(ctx, localPath, id, ext)
	}

	if err := s.store.Create(ctx, v); err != nil {
		_ = os.Remove(localPath)
		logger.Error.Printf("failed to save video metadata %s: %v", id, err)
		return nil, fmt.Errorf("failed to save video metadata: %w", err)
	}
	logger.Info.Printf("video received: id=%s, filename=%s", id, logger.SanitizeForLog(req.OriginalFilename))

	return s.orch.Dispatch(ctx, v, localPath)
}

// archiveOriginal keeps a copy of the source on the selected provider. Not
// having one configured, or a failed upload, only costs the copy.
func (s *VideoService) archiveOriginal(ctx context.Context, localPath, id, ext string) string {
	if s.storage == nil {
		return ""
	}
	if _, err := s.storage.Selected(); err != nil {
		logger.Debug.Printf("not archiving %s: %v", id, err)
		return ""
	}
	obj, err := s.storage.UploadFile(ctx, localPath, "videos/"+id+"/original"+ext, domain.PutOptions{})
	if err != nil {
		logger.Warn.Printf("failed to archive original of %s: %v", id, err)
		return ""
	}
	return obj.URL
}

func (s *VideoService) Get(ctx context.Context, id string) (*domain.Video, error) {
	return s.store.Get(ctx, id)
}

func (s *VideoService) List(ctx context.Context) ([]*domain.Video, error) {
	return s.store.List(ctx)
}

func (s *VideoService) Update(ctx context.Context, id, title, description string) (*domain.Video, error) {
	if err := s.store.UpdateDetails(ctx, id, strings.TrimSpace(title), strings.TrimSpace(description), s.now()); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete removes the record only. Stored objects are left in place.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info.Printf("video deleted: id=%s", id)
	return nil
}

func (s *VideoService) Status(ctx context.Context, id string) (*domain.StatusReport, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orch.QueryStatus(ctx, v), nil
}

// Stream returns playback URLs for the requested qualities of a ready video,
// or for all of them when none are requested. A format without an Engine URL
// falls back to the selected provider's template.
func (s *VideoService) Stream(ctx context.Context, id string, qualities []string) ([]domain.StreamURL, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != domain.VideoStatusReady {
		return nil, fmt.Errorf("%w: status is %s", ErrNotReady, v.Status)
	}
	if len(qualities) == 0 {
		qualities = v.Qualities()
	}

	urls := make([]domain.StreamURL, 0, len(qualities))
	for _, q := range qualities {
		f := v.FormatByQuality(q)
		if f == nil {
			continue
		}
		if f.URL != "" {
			urls = append(urls, domain.StreamURL{Quality: f.Quality, URL: f.URL, ContentType: contentTypeForURL(f.URL)})
			continue
		}
		if s.storage == nil {
			continue
		}
		fallback, err := s.storage.StreamingURLs(v.ID, []string{f.Quality})
		if err != nil {
			logger.Warn.Printf("no fallback stream url for %s/%s: %v", v.ID, f.Quality, err)
			continue
		}
		urls = append(urls, fallback...)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no playable format among %v: %w", qualities, domain.ErrNotFound)
	}
	return urls, nil
}

func contentTypeForURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.DefaultContentType
	}
	ext := path.Ext(u.Path)
	if strings.EqualFold(ext, ".m3u8") {
		return domain.HLSContentType
	}
	return domain.ContentTypeFor(ext)
}
