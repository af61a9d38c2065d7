package http

import (
	"context"
	"net/http"
	"time"

	"github.com/bnema/vidflow/internal/adapter/http/middleware"
	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type VideoService interface {
	Intake(ctx context.Context, req service.IntakeRequest) (*domain.Video, error)
	Get(ctx context.Context, id string) (*domain.Video, error)
	List(ctx context.Context) ([]*domain.Video, error)
	Update(ctx context.Context, id, title, description string) (*domain.Video, error)
	Delete(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (*domain.StatusReport, error)
	Stream(ctx context.Context, id string, qualities []string) ([]domain.StreamURL, error)
	UploadDir() string
}

type StorageService interface {
	DeleteFile(ctx context.Context, key string) (*domain.DeleteReport, error)
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

type ServerConfig struct {
	MaxUploadSizeMB int
	SignTTL         time.Duration
	Version         string
}

type Server struct {
	mux        *http.ServeMux
	handler    http.Handler
	handlers   *Handlers
	sseHandler *SSEHandler
}

func NewServer(videos VideoService, storage StorageService, engine HealthChecker, eventBus *service.EventBus, cfg ServerConfig) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(videos, storage, engine, cfg),
		sseHandler: NewSSEHandler(eventBus, videos),
	}
	s.registerRoutes()
	s.handler = otelhttp.NewHandler(middleware.SecurityHeaders(mux), "vidflow")
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/videos", s.handlers.Upload())
	s.mux.HandleFunc("GET /api/videos", s.handlers.ListVideos())
	s.mux.HandleFunc("GET /api/videos/{id}", s.handlers.GetVideo())
	s.mux.HandleFunc("PATCH /api/videos/{id}", s.handlers.UpdateVideo())
	s.mux.HandleFunc("DELETE /api/videos/{id}", s.handlers.DeleteVideo())
	s.mux.HandleFunc("GET /api/videos/{id}/status", s.handlers.Status())
	s.mux.HandleFunc("GET /api/videos/{id}/stream", s.handlers.Stream())
	s.mux.HandleFunc("GET /api/videos/{id}/events", s.sseHandler.Events())

	s.mux.HandleFunc("GET /api/objects/signed/{key...}", s.handlers.SignObject())
	s.mux.HandleFunc("DELETE /api/objects/{key...}", s.handlers.DeleteObject())

	s.mux.HandleFunc("GET /health", s.handlers.Health())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
