package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

const (
	DefaultSubmitTimeout = 2 * time.Minute
	DefaultStatusTimeout = 10 * time.Second
)

type OrchestratorConfig struct {
	SubmitTimeout time.Duration
	StatusTimeout time.Duration
}

// Orchestrator drives a record through dispatch and status reconciliation.
type Orchestrator struct {
	store         port.VideoStore
	engine        port.Engine
	events        EventPublisher
	metrics       *metrics
	submitTimeout time.Duration
	statusTimeout time.Duration
	now           func() time.Time
}

func NewOrchestrator(store port.VideoStore, engine port.Engine, events EventPublisher, cfg OrchestratorConfig) *Orchestrator {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	return &Orchestrator{
		store:         store,
		engine:        engine,
		events:        events,
		metrics:       newMetrics(nil),
		submitTimeout: cfg.SubmitTimeout,
		statusTimeout: cfg.StatusTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

// Dispatch submits localFile to the Engine for v, which must be uploading.
// The file is closed and removed exactly once whatever the outcome. On any
// submission failure the record moves to error and a DispatchFailure is
// returned along with it.
func (o *Orchestrator) Dispatch(ctx context.Context, v *domain.Video, localFile string) (*domain.Video, error) {
	var (
		file *os.File
		once sync.Once
	)
	release := func() {
		once.Do(func() {
			if file != nil {
				_ = file.Close()
			}
			if localFile == "" || validatePath(localFile) != nil {
				return
			}
			if err := os.Remove(localFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn.Printf("failed to remove %s: %v", logger.SanitizeForLog(localFile), err)
			}
		})
	}
	defer release()

	if v.Status != domain.VideoStatusUploading {
		return v, fmt.Errorf("dispatch %s from %s: %w", v.ID, v.Status, domain.ErrInvalidTransition)
	}

	if err := validatePath(localFile); err != nil {
		return o.failDispatch(ctx, v, err)
	}
	f, err := os.Open(localFile)
	if err != nil {
		return o.failDispatch(ctx, v, fmt.Errorf("open source: %w", err))
	}
	file = f

	sctx, cancel := context.WithTimeout(ctx, o.submitTimeout)
	jobID, err := o.engine.Submit(sctx, filepath.Base(localFile), f)
	cancel()
	release()
	if err != nil {
		return o.failDispatch(ctx, v, err)
	}

	next := v.Clone()
	next.MarkAsProcessing(jobID, o.now())
	if err := o.store.Transition(context.WithoutCancel(ctx), next, domain.VideoStatusUploading); err != nil {
		o.metrics.recordDispatch(ctx, "unrecorded")
		logger.Error.Printf("engine accepted video %s as job %s but the record was not updated: %v", v.ID, logger.SanitizeForLog(jobID), err)
		// The job id is only reachable through the error; the record is still uploading.
		return v, domain.NewError(domain.KindDispatchFailure, fmt.Sprintf("record job %s for %s", jobID, v.ID), err)
	}

	o.metrics.recordDispatch(ctx, "accepted")
	publishStatus(o.events, next, "")
	logger.Info.Printf("video %s dispatched as job %s", v.ID, logger.SanitizeForLog(jobID))
	return next, nil
}

func (o *Orchestrator) failDispatch(ctx context.Context, v *domain.Video, cause error) (*domain.Video, error) {
	o.metrics.recordDispatch(ctx, "failed")
	logger.Error.Printf("dispatch of video %s failed: %v", v.ID, cause)

	next := v.Clone()
	next.JobID = ""
	next.MarkAsFailed(o.now())
	// The failure is recorded even if the caller has gone away.
	if err := o.store.Transition(context.WithoutCancel(ctx), next, domain.VideoStatusUploading); err != nil {
		logger.Error.Printf("failed to mark video %s as error: %v", v.ID, err)
		if cur, gerr := o.store.Get(context.WithoutCancel(ctx), v.ID); gerr == nil {
			next = cur
		}
	} else {
		publishStatus(o.events, next, cause.Error())
	}
	return next, domain.NewError(domain.KindDispatchFailure, "dispatch "+v.ID, cause)
}

// QueryStatus returns the status of v, asking the Engine only when v is
// processing. Engine and transport errors are logged and never returned; the
// persisted record is reported instead.
func (o *Orchestrator) QueryStatus(ctx context.Context, v *domain.Video) *domain.StatusReport {
	report, _ := o.refresh(ctx, v, o.statusTimeout, "query")
	return report
}

type refreshOutcome int

const (
	refreshSkipped refreshOutcome = iota
	refreshUnchanged
	refreshUpdated
	refreshFailed
)

func (o *Orchestrator) refresh(ctx context.Context, v *domain.Video, timeout time.Duration, source string) (*domain.StatusReport, refreshOutcome) {
	if v.Status != domain.VideoStatusProcessing || v.JobID == "" {
		return &domain.StatusReport{Video: v}, refreshSkipped
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	payload, err := o.engine.Status(sctx, v.JobID)
	cancel()
	if err != nil {
		o.metrics.recordReconcile(ctx, source, "transient")
		logger.Warn.Printf("status of job %s for video %s unavailable: %v", logger.SanitizeForLog(v.JobID), v.ID, err)
		return &domain.StatusReport{Video: v}, refreshFailed
	}

	next, changed := Reconcile(v, payload, o.now())
	if !changed {
		o.metrics.recordReconcile(ctx, source, "unchanged")
		return &domain.StatusReport{Video: v, Message: payload.Message, Checked: true}, refreshUnchanged
	}

	if err := o.store.Transition(context.WithoutCancel(ctx), next, domain.VideoStatusProcessing); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			if cur, gerr := o.store.Get(context.WithoutCancel(ctx), v.ID); gerr == nil {
				o.metrics.recordReconcile(ctx, source, "conflict")
				return &domain.StatusReport{Video: cur, Message: payload.Message, Checked: true}, refreshUnchanged
			}
		}
		o.metrics.recordReconcile(ctx, source, "failed")
		logger.Error.Printf("failed to store reconciled status of video %s: %v", v.ID, err)
		return &domain.StatusReport{Video: v, Message: payload.Message, Checked: true}, refreshFailed
	}

	o.metrics.recordReconcile(ctx, source, string(next.Status))
	publishStatus(o.events, next, payload.Message)
	logger.Info.Printf("video %s is now %s (job %s)", v.ID, next.Status, logger.SanitizeForLog(v.JobID))
	return &domain.StatusReport{Video: next, Message: payload.Message, Checked: true}, refreshUpdated
}
