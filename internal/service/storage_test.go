package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/port"
	"github.com/bnema/vidflow/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestStorageService_Selected(t *testing.T) {
	a := mocks.NewStorageProviderMock(t, domain.ProviderS3)
	b := mocks.NewStorageProviderMock(t, domain.ProviderCloudinary)

	tests := []struct {
		name    string
		bucket  port.StorageProvider
		media   port.StorageProvider
		want    domain.ProviderName
		wantErr bool
	}{
		{"both configured prefers bucket", a, b, domain.ProviderS3, false},
		{"only bucket", a, nil, domain.ProviderS3, false},
		{"only media service", nil, b, domain.ProviderCloudinary, false},
		{"none", nil, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewStorageService(tt.bucket, tt.media)
			p, err := svc.Selected()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestStorageService_UploadFile_UsesOnlySelectedProvider(t *testing.T) {
	a := mocks.NewStorageProviderMock(t, domain.ProviderS3)
	b := mocks.NewStorageProviderMock(t, domain.ProviderCloudinary)
	svc := NewStorageService(a, b)
	path := writeTempFile(t, "clip.MP4", "frames")

	a.On("Put", mock.Anything, "videos/v1/original.mp4", mock.Anything, domain.PutOptions{ContentType: "video/mp4"}).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			assert.Equal(t, "frames", string(data))
		}).
		Return(&domain.StoredObject{Provider: domain.ProviderS3, URL: "https://bucket/videos/v1/original.mp4"}, nil).
		Once()

	obj, err := svc.UploadFile(context.Background(), path, "videos/v1/original.mp4", domain.PutOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderS3, obj.Provider)
	b.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStorageService_UploadFile_NoFailover(t *testing.T) {
	a := mocks.NewStorageProviderMock(t, domain.ProviderS3)
	b := mocks.NewStorageProviderMock(t, domain.ProviderCloudinary)
	svc := NewStorageService(a, b)
	path := writeTempFile(t, "thumb.png", "png")
	cause := domain.NewError(domain.KindTransientNetwork, "put", errors.New("connection reset"))

	a.On("Put", mock.Anything, "thumb.png", mock.Anything, domain.PutOptions{ContentType: "image/png"}).
		Return(nil, cause).
		Once()

	obj, err := svc.UploadFile(context.Background(), path, "", domain.PutOptions{})

	assert.Nil(t, obj)
	assert.ErrorIs(t, err, domain.ErrTransientNetwork)
	b.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStorageService_UploadFile_ExplicitContentType(t *testing.T) {
	a := mocks.NewStorageProviderMock(t, domain.ProviderS3)
	svc := NewStorageService(a, nil)
	path := writeTempFile(t, "blob.xyz", "?")

	a.On("Put", mock.Anything, "blob.xyz", mock.Anything, domain.PutOptions{ContentType: "text/plain"}).
		Return(&domain.StoredObject{}, nil).
		Once()

	_, err := svc.UploadFile(context.Background(), path, "blob.xyz", domain.PutOptions{ContentType: "text/plain"})
	assert.NoError(t, err)
}

func TestStorageService_UploadFile_NoProvider(t *testing.T) {
	svc := NewStorageService(nil, nil)

	_, err := svc.UploadFile(context.Background(), "/nonexistent.mp4", "k", domain.PutOptions{})

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStorageService_DeleteFile(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		bucketErr   error
		mediaErr    error
		withBucket  bool
		withMedia   bool
		wantErr     error
		wantPartial bool
		wantOK      int
	}{
		{"both succeed", nil, nil, true, true, nil, false, 2},
		{"bucket fails media succeeds", boom, nil, true, true, nil, true, 1},
		{"media fails bucket succeeds", nil, boom, true, true, nil, true, 1},
		{"both fail", boom, boom, true, true, boom, false, 0},
		{"single provider succeeds", nil, nil, false, true, nil, false, 1},
		{"single provider fails", nil, boom, false, true, boom, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bucket, media port.StorageProvider
			if tt.withBucket {
				m := mocks.NewStorageProviderMock(t, domain.ProviderS3)
				m.On("Delete", mock.Anything, "videos/v1/original.mp4").Return(tt.bucketErr).Once()
				bucket = m
			}
			if tt.withMedia {
				m := mocks.NewStorageProviderMock(t, domain.ProviderCloudinary)
				m.On("Delete", mock.Anything, "videos/v1/original.mp4").Return(tt.mediaErr).Once()
				media = m
			}
			svc := NewStorageService(bucket, media)

			report, err := svc.DeleteFile(context.Background(), "videos/v1/original.mp4")

			require.NotNil(t, report)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, report.Succeeded())
			} else {
				assert.NoError(t, err)
				assert.True(t, report.Succeeded())
			}
			assert.Equal(t, tt.wantPartial, report.Partial())
			if tt.wantPartial {
				assert.ErrorIs(t, report.Err(), domain.ErrPartialStorage)
			}

			ok := 0
			for _, o := range report.Outcomes {
				if o.OK {
					ok++
				}
			}
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestStorageService_DeleteFile_NoProvider(t *testing.T) {
	svc := NewStorageService(nil, nil)

	report, err := svc.DeleteFile(context.Background(), "k")

	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStorageService_SignURL(t *testing.T) {
	b := mocks.NewStorageProviderMock(t, domain.ProviderCloudinary)
	unsupported := domain.NewError(domain.KindCapabilityUnsupported, "sign", nil)
	b.On("Sign", mock.Anything, "videos/a.mp4", time.Hour).Return("", unsupported).Once()

	_, err := NewStorageService(nil, b).SignURL(context.Background(), "videos/a.mp4", time.Hour)

	assert.ErrorIs(t, err, domain.ErrCapabilityUnsupported)
}

func TestStorageService_StreamingURLs(t *testing.T) {
	a := mocks.NewStorageProviderMock(t, domain.ProviderS3)
	a.On("StreamURL", "v1", "480p").Return(domain.StreamURL{Quality: "480p", URL: "https://b/videos/v1/480p/index.m3u8"}).Once()
	a.On("StreamURL", "v1", "720p").Return(domain.StreamURL{Quality: "720p", URL: "https://b/videos/v1/720p/index.m3u8"}).Once()

	urls, err := NewStorageService(a, nil).StreamingURLs("v1", []string{"480p", "720p"})

	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "720p", urls[1].Quality)
}
