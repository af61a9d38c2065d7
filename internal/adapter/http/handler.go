package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/vidflow/internal/adapter/http/validation"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/service"
)

// uploadMemoryBytes is how much of a multipart upload is held in memory
// before the rest spills to disk.
const uploadMemoryBytes = 32 << 20

const healthTimeout = 3 * time.Second

type Handlers struct {
	videos    VideoService
	storage   StorageService
	engine    HealthChecker
	maxSizeMB int
	signTTL   time.Duration
	version   string
	started   time.Time
}

func NewHandlers(videos VideoService, storage StorageService, engine HealthChecker, cfg ServerConfig) *Handlers {
	if cfg.SignTTL <= 0 {
		cfg.SignTTL = time.Hour
	}
	return &Handlers{
		videos:    videos,
		storage:   storage,
		engine:    engine,
		maxSizeMB: cfg.MaxUploadSizeMB,
		signTTL:   cfg.SignTTL,
		version:   cfg.Version,
		started:   time.Now(),
	}
}

type errorBody struct {
	Error string        `json:"error"`
	Video *domain.Video `json:"video,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps err onto a status code. Unclassified errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error.Printf("%s %s: %v", r.Method, logger.SanitizeForLog(r.URL.Path), err)
		msg = "internal error"
	}
	writeMessage(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateID),
		errors.Is(err, domain.ErrStatusConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, service.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrCapabilityUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrDispatchFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTransientNetwork):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrUnsupportedFormat), errors.Is(err, validation.ErrDisallowedFileType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(min(maxBytes, uploadMemoryBytes)); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeMessage(w, http.StatusBadRequest, "Invalid multipart upload")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("video")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "No video file provided")
			return
		}
		defer file.Close() //nolint:errcheck

		name := validation.SanitizeFilename(header.Filename)
		ext := strings.ToLower(filepath.Ext(name))
		if !domain.IsAllowedVideoExt(ext) {
			writeMessage(w, http.StatusBadRequest, "Invalid file type")
			return
		}
		mime, allowed, err := validation.ValidateMagicBytes(file)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Failed to read upload")
			return
		}
		if !allowed {
			logger.Warn.Printf("rejected upload %s with content type %s", logger.SanitizeForLog(name), mime)
			writeMessage(w, http.StatusBadRequest, "Invalid file type")
			return
		}

		tmpPath, err := spoolUpload(h.videos.UploadDir(), ext, file)
		if err != nil {
			logger.Error.Printf("failed to spool upload %s: %v", logger.SanitizeForLog(name), err)
			writeMessage(w, http.StatusInternalServerError, "Failed to save file")
			return
		}

		title := r.FormValue("title")
		if strings.TrimSpace(title) == "" {
			title = strings.TrimSuffix(name, filepath.Ext(name))
		}

		v, err := h.videos.Intake(r.Context(), service.IntakeRequest{
			Title:            title,
			Description:      r.FormValue("description"),
			OriginalFilename: name,
			TempPath:         tmpPath,
		})
		if err != nil {
			// The record exists in error state; hand it back with the reason.
			if v != nil && errors.Is(err, domain.ErrDispatchFailure) {
				writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Video: v})
				return
			}
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, v)
	}
}

func spoolUpload(dir, ext string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (h *Handlers) ListVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := h.videos.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if videos == nil {
			videos = []*domain.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

func (h *Handlers) GetVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := h.videos.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handlers) UpdateVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var req updateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		current, err := h.videos.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		title, description := current.Title, current.Description
		if req.Title != nil {
			title = *req.Title
		}
		if req.Description != nil {
			description = *req.Description
		}
		if strings.TrimSpace(title) == "" {
			writeMessage(w, http.StatusBadRequest, "Title cannot be empty")
			return
		}

		v, err := h.videos.Update(r.Context(), id, title, description)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handlers) DeleteVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.videos.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.videos.Status(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handlers) Stream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var qualities []string
		for _, q := range strings.Split(r.URL.Query().Get("quality"), ",") {
			if q = strings.TrimSpace(q); q != "" {
				qualities = append(qualities, q)
			}
		}

		urls, err := h.videos.Stream(r.Context(), r.PathValue("id"), qualities)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"streams": urls})
	}
}

func (h *Handlers) DeleteObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if key == "" {
			writeMessage(w, http.StatusBadRequest, "Missing object key")
			return
		}

		report, err := h.storage.DeleteFile(r.Context(), key)
		if err != nil {
			if report != nil {
				writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "report": report})
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handlers) SignObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		if key == "" {
			writeMessage(w, http.StatusBadRequest, "Missing object key")
			return
		}
		ttl := h.signTTL
		if raw := r.URL.Query().Get("ttl"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				writeMessage(w, http.StatusBadRequest, "Invalid ttl")
				return
			}
			ttl = parsed
		}

		signed, err := h.storage.SignURL(r.Context(), key, ttl)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"url":        signed,
			"expires_at": time.Now().UTC().Add(ttl),
		})
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Engine  string `json:"engine"`
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "healthy",
			Version: h.version,
			Uptime:  time.Since(h.started).Round(time.Second).String(),
			Engine:  "ok",
		}
		if h.engine != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			err := h.engine.Health(ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Engine = err.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
