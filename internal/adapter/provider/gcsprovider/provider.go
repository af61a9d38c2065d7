package gcsprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/bnema/vidflow/internal/adapter/provider"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
	"google.golang.org/api/option"
)

type Config struct {
	Bucket string
	// CredentialsJSON is the service account key. CredentialsFile is read when it is empty.
	CredentialsJSON string
	CredentialsFile string
}

func (c Config) Configured() bool {
	return c.Bucket != "" && (c.CredentialsJSON != "" || c.CredentialsFile != "")
}

func (c Config) credentials() ([]byte, error) {
	if c.CredentialsJSON != "" {
		return []byte(c.CredentialsJSON), nil
	}
	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gcs credentials: %w", err)
	}
	return data, nil
}

type Provider struct {
	client *storage.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Configured() {
		return nil, domain.NewError(domain.KindConfiguration, "gcs provider",
			errors.New("bucket and service account credentials are required"))
	}
	creds, err := cfg.credentials()
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "gcs provider", err)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	client.SetRetry(storage.WithPolicy(storage.RetryNever))

	return &Provider{client: client, bucket: cfg.Bucket}, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) Name() domain.ProviderName {
	return domain.ProviderGCS
}

func (p *Provider) Put(ctx context.Context, key string, content io.Reader, opts domain.PutOptions) (*domain.StoredObject, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeForPath(key)
	}

	wc := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ACL = []storage.ACLRule{{Entity: storage.AllUsers, Role: storage.RoleReader}}

	n, err := io.Copy(wc, content)
	if err != nil {
		_ = wc.Close()
		return nil, domain.ClassifyTransport(fmt.Sprintf("upload %s to bucket %s", key, p.bucket), err)
	}
	if err := wc.Close(); err != nil {
		return nil, domain.ClassifyTransport(fmt.Sprintf("finalize %s in bucket %s", key, p.bucket), err)
	}

	logger.Info.Printf("uploaded object %s to gcs bucket %s (%d bytes)", logger.SanitizeForLog(key), p.bucket, n)
	return &domain.StoredObject{
		Provider:    domain.ProviderGCS,
		Key:         key,
		URL:         PublicURL(p.bucket, key),
		Bytes:       n,
		ContentType: contentType,
	}, nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	if err := p.client.Bucket(p.bucket).Object(key).Delete(ctx); err != nil {
		return domain.ClassifyTransport(fmt.Sprintf("delete %s from bucket %s", key, p.bucket), err)
	}
	return nil
}

func (p *Provider) Sign(_ context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("sign %s: ttl must be positive, got %s", key, ttl)
	}
	u, err := p.client.Bucket(p.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return u, nil
}

func (p *Provider) StreamURL(videoID, quality string) domain.StreamURL {
	return StreamURL(p.bucket, videoID, quality)
}

func PublicURL(bucket, key string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + provider.EscapeKey(key)
}

func StreamURL(bucket, videoID, quality string) domain.StreamURL {
	return domain.StreamURL{
		Quality:     quality,
		URL:         "https://storage.googleapis.com/" + bucket + "/" + provider.HLSPath(videoID, quality),
		ContentType: domain.HLSContentType,
		Fallback:    true,
	}
}

var _ port.StorageProvider = (*Provider)(nil)
