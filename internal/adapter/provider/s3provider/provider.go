package s3provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bnema/vidflow/internal/adapter/provider"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
)

type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	// Endpoint points at an S3-compatible service; path-style addressing is used when set.
	Endpoint string
}

func (c Config) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Region != "" && c.Bucket != ""
}

type Provider struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	cfg      Config
}

func New(cfg Config) (*Provider, error) {
	if !cfg.Configured() {
		return nil, domain.NewError(domain.KindConfiguration, "s3 provider",
			errors.New("access key id, secret access key, region and bucket are required"))
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		// Single attempt per call; the next poll or request is the retry.
		Retryer: aws.NopRetryer{},
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
		opts.UsePathStyle = true
	}
	client := s3.New(opts)

	return &Provider{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		cfg:      cfg,
	}, nil
}

func (p *Provider) Name() domain.ProviderName {
	return domain.ProviderS3
}

func (p *Provider) Put(ctx context.Context, key string, content io.Reader, opts domain.PutOptions) (*domain.StoredObject, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeForPath(key)
	}

	body := &provider.CountingReader{R: content}
	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return nil, domain.ClassifyTransport(fmt.Sprintf("upload %s to bucket %s", key, p.cfg.Bucket), err)
	}

	logger.Info.Printf("uploaded object %s to bucket %s (%d bytes)", logger.SanitizeForLog(key), p.cfg.Bucket, body.N)
	return &domain.StoredObject{
		Provider:    domain.ProviderS3,
		Key:         key,
		URL:         PublicURL(p.cfg, key),
		Bytes:       body.N,
		ContentType: contentType,
	}, nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.ClassifyTransport(fmt.Sprintf("delete %s from bucket %s", key, p.cfg.Bucket), err)
	}
	return nil
}

func (p *Provider) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("sign %s: ttl must be positive, got %s", key, ttl)
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (p *Provider) StreamURL(videoID, quality string) domain.StreamURL {
	return StreamURL(p.cfg, videoID, quality)
}

// PublicURL is the unsigned URL of an object readable through the public-read ACL.
func PublicURL(cfg Config, key string) string {
	return baseURL(cfg) + "/" + provider.EscapeKey(key)
}

// StreamURL follows the HLS path convention used for encoded renditions.
func StreamURL(cfg Config, videoID, quality string) domain.StreamURL {
	return domain.StreamURL{
		Quality:     quality,
		URL:         baseURL(cfg) + "/" + provider.HLSPath(videoID, quality),
		ContentType: domain.HLSContentType,
		Fallback:    true,
	}
}

func baseURL(cfg Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

var _ port.StorageProvider = (*Provider)(nil)
