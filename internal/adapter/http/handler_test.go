package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeVideos struct {
	uploadDir string
	videos    map[string]*domain.Video
	intake    func(req service.IntakeRequest) (*domain.Video, error)
	intakes   []service.IntakeRequest
	streams   []domain.StreamURL
}

func newFakeVideos(t *testing.T) *fakeVideos {
	return &fakeVideos{uploadDir: t.TempDir(), videos: map[string]*domain.Video{}}
}

func (f *fakeVideos) Intake(_ context.Context, req service.IntakeRequest) (*domain.Video, error) {
	f.intakes = append(f.intakes, req)
	if f.intake != nil {
		return f.intake(req)
	}
	v := domain.NewVideo("vid-1", req.Title, req.Description, req.OriginalFilename, testTime)
	v.MarkAsProcessing("job-42", testTime)
	return v, nil
}

func (f *fakeVideos) Get(_ context.Context, id string) (*domain.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeVideos) List(context.Context) ([]*domain.Video, error) {
	var out []*domain.Video
	for _, v := range f.videos {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVideos) Update(_ context.Context, id, title, description string) (*domain.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	v.UpdateDetails(title, description, testTime.Add(time.Minute))
	return v, nil
}

func (f *fakeVideos) Delete(_ context.Context, id string) error {
	if _, ok := f.videos[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.videos, id)
	return nil
}

func (f *fakeVideos) Status(_ context.Context, id string) (*domain.StatusReport, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.StatusReport{Video: v, Message: "Encoding", Checked: true}, nil
}

func (f *fakeVideos) Stream(_ context.Context, id string, _ []string) ([]domain.StreamURL, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v.Status != domain.VideoStatusReady {
		return nil, service.ErrNotReady
	}
	return f.streams, nil
}

func (f *fakeVideos) UploadDir() string {
	return f.uploadDir
}

type fakeStorage struct {
	report  *domain.DeleteReport
	delErr  error
	signErr error
	gotTTL  time.Duration
}

func (f *fakeStorage) DeleteFile(_ context.Context, key string) (*domain.DeleteReport, error) {
	if f.report != nil {
		f.report.Key = key
	}
	return f.report, f.delErr
}

func (f *fakeStorage) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.gotTTL = ttl
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed/" + key, nil
}

type fakeEngine struct{ err error }

func (f fakeEngine) Health(context.Context) error { return f.err }

func newTestServer(videos *fakeVideos, storage *fakeStorage, engine HealthChecker) *Server {
	return NewServer(videos, storage, engine, service.NewEventBus(), ServerConfig{MaxUploadSizeMB: 1, SignTTL: time.Hour, Version: "test"})
}

func mp4Bytes() []byte {
	data := make([]byte, 256)
	copy(data, []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'})
	return data
}

func multipartBody(t *testing.T, field, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestUpload_Created(t *testing.T) {
	videos := newFakeVideos(t)
	srv := newTestServer(videos, &fakeStorage{}, nil)
	body, ct := multipartBody(t, "video", "clip.mp4", mp4Bytes(), map[string]string{"title": "Holiday", "description": "beach"})

	req := httptest.NewRequest(http.MethodPost, "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var v domain.Video
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "job-42", v.JobID)
	assert.Equal(t, domain.VideoStatusProcessing, v.Status)

	require.Len(t, videos.intakes, 1)
	got := videos.intakes[0]
	assert.Equal(t, "Holiday", got.Title)
	assert.Equal(t, "beach", got.Description)
	assert.Equal(t, "clip.mp4", got.OriginalFilename)
	assert.True(t, strings.HasPrefix(got.TempPath, videos.uploadDir))
	assert.True(t, strings.HasSuffix(got.TempPath, ".mp4"))
	data, err := os.ReadFile(got.TempPath)
	require.NoError(t, err)
	assert.Equal(t, mp4Bytes(), data)
}

func TestUpload_DefaultsTitleToFilename(t *testing.T) {
	videos := newFakeVideos(t)
	srv := newTestServer(videos, &fakeStorage{}, nil)
	body, ct := multipartBody(t, "video", "summer trip.mp4", mp4Bytes(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "summer trip", videos.intakes[0].Title)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  []byte
		want     int
	}{
		{"wrong field", "file", "clip.mp4", mp4Bytes(), http.StatusBadRequest},
		{"extension not allowed", "video", "notes.txt", mp4Bytes(), http.StatusBadRequest},
		{"content is not video", "video", "clip.mp4", []byte("<!DOCTYPE html><html></html>"), http.StatusBadRequest},
		{"too large", "video", "clip.mp4", append(mp4Bytes(), make([]byte, 2<<20)...), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := newFakeVideos(t)
			srv := newTestServer(videos, &fakeStorage{}, nil)
			body, ct := multipartBody(t, tt.field, tt.filename, tt.content, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/videos", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
			assert.Empty(t, videos.intakes)
		})
	}
}

func TestUpload_DispatchFailureReturnsRecord(t *testing.T) {
	videos := newFakeVideos(t)
	videos.intake = func(req service.IntakeRequest) (*domain.Video, error) {
		v := domain.NewVideo("vid-1", req.Title, "", req.OriginalFilename, testTime)
		v.MarkAsFailed(testTime)
		return v, domain.NewError(domain.KindDispatchFailure, "dispatch vid-1", errors.New("engine unreachable"))
	}
	srv := newTestServer(videos, &fakeStorage{}, nil)
	body, ct := multipartBody(t, "video", "clip.mp4", mp4Bytes(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "engine unreachable")
	require.NotNil(t, resp.Video)
	assert.Equal(t, domain.VideoStatusError, resp.Video.Status)
}

func TestVideoRoutes(t *testing.T) {
	videos := newFakeVideos(t)
	videos.videos["v1"] = domain.NewVideo("v1", "Clip", "", "clip.mp4", testTime)
	srv := newTestServer(videos, &fakeStorage{}, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list", http.MethodGet, "/api/videos", "", http.StatusOK},
		{"get", http.MethodGet, "/api/videos/v1", "", http.StatusOK},
		{"get missing", http.MethodGet, "/api/videos/nope", "", http.StatusNotFound},
		{"status", http.MethodGet, "/api/videos/v1/status", "", http.StatusOK},
		{"stream not ready", http.MethodGet, "/api/videos/v1/stream", "", http.StatusConflict},
		{"patch", http.MethodPatch, "/api/videos/v1", `{"title":"Renamed"}`, http.StatusOK},
		{"patch empty title", http.MethodPatch, "/api/videos/v1", `{"title":"  "}`, http.StatusBadRequest},
		{"patch bad json", http.MethodPatch, "/api/videos/v1", `{`, http.StatusBadRequest},
		{"patch missing", http.MethodPatch, "/api/videos/nope", `{"title":"x"}`, http.StatusNotFound},
		{"delete", http.MethodDelete, "/api/videos/v1", "", http.StatusNoContent},
		{"delete again", http.MethodDelete, "/api/videos/v1", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusNoContent {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestPatch_KeepsOmittedFields(t *testing.T) {
	videos := newFakeVideos(t)
	videos.videos["v1"] = domain.NewVideo("v1", "Clip", "original description", "clip.mp4", testTime)
	srv := newTestServer(videos, &fakeStorage{}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/videos/v1", strings.NewReader(`{"title":"Renamed"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var v domain.Video
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "Renamed", v.Title)
	assert.Equal(t, "original description", v.Description)
}

func TestStream_Ready(t *testing.T) {
	videos := newFakeVideos(t)
	v := domain.NewVideo("v1", "Clip", "", "clip.mp4", testTime)
	v.MarkAsProcessing("job-1", testTime)
	v.MarkAsReady([]domain.Format{{Quality: "720p", URL: "https://cdn/720.mp4"}}, "", 1, domain.VideoInfo{}, testTime)
	videos.videos["v1"] = v
	videos.streams = []domain.StreamURL{{Quality: "720p", URL: "https://cdn/720.mp4", ContentType: "video/mp4"}}
	srv := newTestServer(videos, &fakeStorage{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos/v1/stream?quality=720p", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Streams []domain.StreamURL `json:"streams"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, videos.streams, resp.Streams)
}

func TestDeleteObject(t *testing.T) {
	partial := &domain.DeleteReport{Outcomes: []domain.DeleteOutcome{
		domain.NewDeleteOutcome(domain.ProviderS3, nil),
		domain.NewDeleteOutcome(domain.ProviderCloudinary, errors.New("not found")),
	}}
	allFailed := &domain.DeleteReport{Outcomes: []domain.DeleteOutcome{
		domain.NewDeleteOutcome(domain.ProviderS3, errors.New("denied")),
	}}

	tests := []struct {
		name    string
		storage *fakeStorage
		want    int
	}{
		{"partial success", &fakeStorage{report: partial}, http.StatusOK},
		{"all failed", &fakeStorage{report: allFailed, delErr: errors.New("denied")}, http.StatusBadGateway},
		{"no provider", &fakeStorage{delErr: domain.NewError(domain.KindConfiguration, "delete", nil)}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(newFakeVideos(t), tt.storage, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/objects/videos/v1/original.mp4", nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.storage.report != nil {
				assert.Equal(t, "videos/v1/original.mp4", tt.storage.report.Key)
			}
		})
	}
}

func TestSignObject(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		signErr error
		want    int
		wantTTL time.Duration
	}{
		{"default ttl", "", nil, http.StatusOK, time.Hour},
		{"explicit ttl", "?ttl=15m", nil, http.StatusOK, 15 * time.Minute},
		{"bad ttl", "?ttl=soon", nil, http.StatusBadRequest, 0},
		{"negative ttl", "?ttl=-1m", nil, http.StatusBadRequest, 0},
		{"unsupported", "", domain.NewError(domain.KindCapabilityUnsupported, "sign", nil), http.StatusNotImplemented, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &fakeStorage{signErr: tt.signErr}
			srv := newTestServer(newFakeVideos(t), storage, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/objects/signed/videos/a.mp4"+tt.query, nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.wantTTL, storage.gotTTL)
			if tt.want == http.StatusOK {
				var resp map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "https://signed/videos/a.mp4", resp["url"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		engine HealthChecker
		want   string
	}{
		{"engine up", fakeEngine{}, "healthy"},
		{"engine down", fakeEngine{err: errors.New("connection refused")}, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(newFakeVideos(t), &fakeStorage{}, tt.engine)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp healthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "test", resp.Version)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrStatusConflict, http.StatusConflict},
		{service.ErrNotReady, http.StatusConflict},
		{domain.NewError(domain.KindConfiguration, "x", nil), http.StatusServiceUnavailable},
		{domain.NewError(domain.KindCapabilityUnsupported, "x", nil), http.StatusNotImplemented},
		{domain.NewError(domain.KindDispatchFailure, "x", nil), http.StatusBadGateway},
		{domain.NewError(domain.KindTransientNetwork, "x", nil), http.StatusGatewayTimeout},
		{service.ErrUnsupportedFormat, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
