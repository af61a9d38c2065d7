package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/vidflow/internal/adapter/provider/cloudinaryprovider"
	"github.com/bnema/vidflow/internal/adapter/provider/gcsprovider"
	"github.com/bnema/vidflow/internal/adapter/provider/s3provider"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/service"
	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StorePebble = "pebble"

	BucketS3  = "s3"
	BucketGCS = "gcs"
)

// envFiles are loaded in order; a variable set by an earlier file wins.
var envFiles = []string{".env.local", ".env"}

type Config struct {
	Port             int
	DataDir          string
	MaxUploadSizeMB  int
	StoreBackend     string
	EngineURL        string
	Orchestrator     service.OrchestratorConfig
	Poller           service.PollerConfig
	BucketBackend    string
	S3               s3provider.Config
	GCS              gcsprovider.Config
	Cloudinary       cloudinaryprovider.Config
	SignTTL          time.Duration
	ArchiveOriginals bool
	Debug            bool
}

func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}
	if maxUploadSizeMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: must be positive")
	}

	storeBackend := strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite))
	if storeBackend != StoreSQLite && storeBackend != StorePebble {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", storeBackend, StoreSQLite, StorePebble)
	}

	engineURL := strings.TrimSpace(os.Getenv("ENGINE_URL"))
	if engineURL == "" {
		return nil, domain.NewError(domain.KindConfiguration, "config", errors.New("ENGINE_URL is required"))
	}

	submitTimeout, err := getDuration("ENGINE_SUBMIT_TIMEOUT", service.DefaultSubmitTimeout)
	if err != nil {
		return nil, err
	}
	statusTimeout, err := getDuration("ENGINE_STATUS_TIMEOUT", service.DefaultStatusTimeout)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getDuration("POLL_INTERVAL", service.DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	pollTimeout, err := getDuration("POLL_TIMEOUT", service.DefaultPollTimeout)
	if err != nil {
		return nil, err
	}
	pollConcurrency, err := strconv.Atoi(getEnv("POLL_CONCURRENCY", strconv.Itoa(service.DefaultPollConcurrency)))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_CONCURRENCY: %w", err)
	}
	if pollConcurrency <= 0 {
		return nil, fmt.Errorf("invalid POLL_CONCURRENCY: must be positive")
	}

	bucketBackend := strings.ToLower(getEnv("BUCKET_BACKEND", BucketS3))
	if bucketBackend != BucketS3 && bucketBackend != BucketGCS {
		return nil, fmt.Errorf("invalid BUCKET_BACKEND %q: want %s or %s", bucketBackend, BucketS3, BucketGCS)
	}

	signTTL, err := getDuration("SIGN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	archive, err := getBool("ARCHIVE_ORIGINALS", true)
	if err != nil {
		return nil, err
	}
	debug, err := getBool("LOG_DEBUG", false)
	if err != nil {
		return nil, err
	}

	bucket := os.Getenv("BUCKET_NAME")

	return &Config{
		Port:            port,
		DataDir:         getEnv("DATA_DIR", "/data"),
		MaxUploadSizeMB: maxUploadSizeMB,
		StoreBackend:    storeBackend,
		EngineURL:       engineURL,
		Orchestrator: service.OrchestratorConfig{
			SubmitTimeout: submitTimeout,
			StatusTimeout: statusTimeout,
		},
		Poller: service.PollerConfig{
			Interval:    pollInterval,
			Timeout:     pollTimeout,
			Concurrency: pollConcurrency,
		},
		BucketBackend: bucketBackend,
		S3: s3provider.Config{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:          os.Getenv("AWS_REGION"),
			Bucket:          bucket,
			Endpoint:        os.Getenv("S3_ENDPOINT"),
		},
		GCS: gcsprovider.Config{
			Bucket:          bucket,
			CredentialsJSON: os.Getenv("GCS_CREDENTIALS_JSON"),
			CredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		},
		Cloudinary: cloudinaryprovider.Config{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
		SignTTL:          signTTL,
		ArchiveOriginals: archive,
		Debug:            debug,
	}, nil
}

// BucketConfigured reports whether the selected bucket backend has a full set of credentials.
func (c *Config) BucketConfigured() bool {
	if c.BucketBackend == BucketGCS {
		return c.GCS.Configured()
	}
	return c.S3.Configured()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
