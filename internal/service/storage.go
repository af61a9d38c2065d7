package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
)

var errNoProvider = errors.New("no storage provider is configured")

// StorageService puts objects on one preferred provider and deletes them from
// every configured one. bucket (Provider A) wins over media (Provider B).
// Either may be nil when it is not configured.
type StorageService struct {
	bucket port.StorageProvider
	media  port.StorageProvider
}

func NewStorageService(bucket, media port.StorageProvider) *StorageService {
	return &StorageService{bucket: bucket, media: media}
}

// Selected returns the provider new objects go to. There is no failover.
func (s *StorageService) Selected() (port.StorageProvider, error) {
	switch {
	case s.bucket != nil:
		return s.bucket, nil
	case s.media != nil:
		return s.media, nil
	}
	return nil, domain.NewError(domain.KindConfiguration, "select provider", errNoProvider)
}

// Configured lists the providers in preference order.
func (s *StorageService) Configured() []port.StorageProvider {
	var out []port.StorageProvider
	if s.bucket != nil {
		out = append(out, s.bucket)
	}
	if s.media != nil {
		out = append(out, s.media)
	}
	return out
}

// UploadFile stores the file at path under key on the selected provider.
func (s *StorageService) UploadFile(ctx context.Context, path, key string, opts domain.PutOptions) (*domain.StoredObject, error) {
	p, err := s.Selected()
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = filepath.Base(path)
	}
	if opts.ContentType == "" {
		opts.ContentType = domain.ContentTypeForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	obj, err := p.Put(ctx, key, f, opts)
	if err != nil {
		logger.Error.Printf("upload of %s to %s failed: %v", logger.SanitizeForLog(key), p.Name(), err)
		return nil, err
	}
	return obj, nil
}

// DeleteFile removes key from every configured provider. It succeeds when at
// least one provider did; the report carries each outcome either way.
func (s *StorageService) DeleteFile(ctx context.Context, key string) (*domain.DeleteReport, error) {
	providers := s.Configured()
	if len(providers) == 0 {
		return nil, domain.NewError(domain.KindConfiguration, "delete "+key, errNoProvider)
	}

	report := &domain.DeleteReport{Key: key}
	for _, p := range providers {
		err := p.Delete(ctx, key)
		if err != nil {
			logger.Warn.Printf("delete of %s on %s failed: %v", logger.SanitizeForLog(key), p.Name(), err)
		}
		report.Outcomes = append(report.Outcomes, domain.NewDeleteOutcome(p.Name(), err))
	}

	if !report.Succeeded() {
		return report, report.Err()
	}
	if report.Partial() {
		logger.Warn.Printf("%v", report.Err())
	}
	return report, nil
}

// SignURL asks the selected provider for a time-limited read URL.
func (s *StorageService) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := s.Selected()
	if err != nil {
		return "", err
	}
	return p.Sign(ctx, key, ttl)
}

// StreamingURLs templates playback URLs on the selected provider. No network.
func (s *StorageService) StreamingURLs(videoID string, qualities []string) ([]domain.StreamURL, error) {
	p, err := s.Selected()
	if err != nil {
		return nil, err
	}
	urls := make([]domain.StreamURL, 0, len(qualities))
	for _, q := range qualities {
		urls = append(urls, p.StreamURL(videoID, q))
	}
	return urls, nil
}
