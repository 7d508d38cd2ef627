package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"organ/internal/config"
	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/notifications"
	"organ/internal/services"
	"organ/internal/stage"
	"organ/internal/store"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Recognizer  stage.Handler
	Transferrer stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      store.JobStatus
	processingStatus store.JobStatus
	doneStatus       store.JobStatus
}

// Manager coordinates job processing using registered stage functions.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	logger       *slog.Logger
	notifier     notifications.Service
	bus          *events.Bus
	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[store.JobStatus]pipelineStage
	statusOrder  []store.JobStatus

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *store.Job
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *store.Job
	QueueStats  map[store.JobStatus]int
	StageHealth map[string]stage.Health
}

// NewManager constructs a workflow manager. Notifier and bus may be nil.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service, bus *events.Bus) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow")),
		notifier:     notifier,
		bus:          bus,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		stageByStart: make(map[store.JobStatus]pipelineStage),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	if set.Recognizer != nil {
		stages = append(stages, pipelineStage{
			name:             "recognizer",
			handler:          set.Recognizer,
			startStatus:      store.JobPending,
			processingStatus: store.JobRecognizing,
			doneStatus:       store.JobRecognized,
		})
	}
	if set.Transferrer != nil {
		stages = append(stages, pipelineStage{
			name:             "transferrer",
			handler:          set.Transferrer,
			startStatus:      store.JobRecognized,
			processingStatus: store.JobTransferring,
			doneStatus:       store.JobCompleted,
		})
	}

	byStart := make(map[store.JobStatus]pipelineStage, len(stages))
	order := make([]store.JobStatus, 0, len(stages))
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.statusOrder = order
	m.mu.Unlock()
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleJobs(ctx, m.logger); err != nil {
			m.logger.Warn("reclaim stale processing failed; stuck jobs may remain",
				logging.Error(err))
		}

		job, err := m.store.NextForStatuses(ctx, m.statusOrder...)
		if err != nil {
			m.handleFetchError(ctx, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next job", logging.Error(err))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) processJob(ctx context.Context, job *store.Job) error {
	stg, ok := m.stageByStart[job.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	stageCtx := services.WithRequestID(
		services.WithStage(services.WithJobID(ctx, job.ID), stg.name),
		uuid.NewString(),
	)
	stageLogger := logging.WithContext(stageCtx, m.logger).With(
		logging.String(logging.FieldFile, job.SourceName),
	)

	if err := m.transitionToProcessing(stageCtx, stg, job); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *store.Job) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg.name, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stg.handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if job.Status == stg.processingStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == store.JobCompleted && job.ProgressPercent < 100 {
		job.ProgressPercent = 100
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	if job.Status == store.JobCompleted || job.Status == store.JobReview {
		m.publishTerminal(job)
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *store.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *store.Job) error {
	now := time.Now().UTC()
	job.Status = stg.processingStatus
	job.ProgressPercent = 0
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastJob(job)
	return nil
}

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *store.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}

	status := services.FailureStatus(stageErr)
	if status == store.JobReview {
		job.Status = store.JobReview
		job.ReviewReason = message
		job.ErrorMessage = ""
	} else {
		job.SetFailed(message)
	}
	job.LastHeartbeat = nil

	logger.Error("stage failed",
		logging.String("resolved_status", string(job.Status)),
		logging.Alert("stage_failure"),
		logging.Error(stageErr),
	)

	if err := m.store.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastJob(job)
	m.publishTerminal(job)
	if m.notifier != nil && job.Status == store.JobFailed {
		label := fmt.Sprintf("%s (job #%d)", stageName, job.ID)
		if err := m.notifier.NotifyError(ctx, stageErr, label); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) publishTerminal(job *store.Job) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.KindJobCompleted, events.JobCompleted{
		JobID:  job.ID,
		Status: string(job.Status),
		Error:  job.ErrorMessage,
	})
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	stages := m.stages
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		jobCopy := *lastJob
		summary.LastJob = &jobCopy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *store.Job) {
	m.mu.Lock()
	if job != nil {
		jobCopy := *job
		m.lastJob = &jobCopy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
