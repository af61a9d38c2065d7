package cloudinaryprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bnema/vidflow/internal/adapter/provider"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
}

func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type Provider struct {
	cld       *cloudinary.Cloudinary
	cloudName string
}

func New(cfg Config) (*Provider, error) {
	if !cfg.Configured() {
		return nil, domain.NewError(domain.KindConfiguration, "cloudinary provider",
			errors.New("cloud name, api key and api secret are required"))
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return &Provider{cld: cld, cloudName: cfg.CloudName}, nil
}

func (p *Provider) Name() domain.ProviderName {
	return domain.ProviderCloudinary
}

func (p *Provider) Put(ctx context.Context, key string, content io.Reader, _ domain.PutOptions) (*domain.StoredObject, error) {
	resp, err := p.cld.Upload.Upload(ctx, content, uploader.UploadParams{
		PublicID:     PublicID(key),
		ResourceType: "auto",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return nil, domain.ClassifyTransport("cloudinary upload "+key, err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload %s: %s", key, resp.Error.Message)
	}

	logger.Info.Printf("uploaded %s to cloudinary as %s (%d bytes)", logger.SanitizeForLog(key), resp.PublicID, resp.Bytes)
	return &domain.StoredObject{
		Provider: domain.ProviderCloudinary,
		Key:      key,
		URL:      resp.SecureURL,
		Bytes:    int64(resp.Bytes),
		Format:   resp.Format,
	}, nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	resp, err := p.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     PublicID(key),
		ResourceType: ResourceType(key),
	})
	if err != nil {
		return domain.ClassifyTransport("cloudinary destroy "+key, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", key, resp.Error.Message)
	}
	if resp.Result != "ok" {
		return fmt.Errorf("cloudinary destroy %s: result %q", key, resp.Result)
	}
	return nil
}

// Sign is not offered by the managed media service.
func (p *Provider) Sign(context.Context, string, time.Duration) (string, error) {
	return "", domain.NewError(domain.KindCapabilityUnsupported, "sign", errors.New("cloudinary does not issue signed object URLs"))
}

func (p *Provider) StreamURL(videoID, quality string) domain.StreamURL {
	return StreamURL(p.cloudName, videoID, quality)
}

// PublicID drops the extension; the service tracks the format on its own.
func PublicID(key string) string {
	key = strings.TrimPrefix(key, "/")
	return strings.TrimSuffix(key, path.Ext(key))
}

func ResourceType(key string) string {
	if strings.HasPrefix(domain.ContentTypeForPath(key), "image/") {
		return "image"
	}
	return "video"
}

// StreamURL builds a delivery URL with automatic quality and, when the tag
// carries one, a height transformation.
func StreamURL(cloudName, videoID, quality string) domain.StreamURL {
	transform := "q_auto"
	if h := provider.QualityHeight(quality); h > 0 {
		transform = fmt.Sprintf("q_auto,h_%d", h)
	}
	return domain.StreamURL{
		Quality: quality,
		URL: fmt.Sprintf("https://res.cloudinary.com/%s/video/upload/%s/videos/%s.mp4",
			url.PathEscape(cloudName), transform, url.PathEscape(videoID)),
		ContentType: "video/mp4",
		Fallback:    true,
	}
}

var _ port.StorageProvider = (*Provider)(nil)
