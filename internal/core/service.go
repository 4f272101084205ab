package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/annonces/internal/config"
	"github.com/JonMunkholm/annonces/internal/logging"
	"github.com/JonMunkholm/annonces/internal/schema"
	"github.com/google/uuid"
)

var (
	// ErrEmptyFile is returned for uploads without any bytes.
	ErrEmptyFile = errors.New("empty file: the upload contains no data")

	// ErrFileTooLarge is returned when an upload exceeds Upload.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnknownSchema is returned when a schema key is not registered.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrRunNotFound is returned by run stores for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
)

// Service runs validations and keeps their history.
type Service struct {
	store   RunStore
	cfg     *config.Config
	limiter *UploadLimiter

	mu         sync.Mutex
	validators map[string]*FileValidator
}

// NewService creates a Service persisting runs in store.
func NewService(store RunStore, cfg *config.Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("new service: run store is required")
	}
	if cfg == nil {
		return nil, errors.New("new service: config is required")
	}

	s := &Service{
		store:      store,
		cfg:        cfg,
		limiter:    NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		validators: make(map[string]*FileValidator),
	}

	// fail at startup, not on the first upload, when the default is unusable
	if _, err := s.validator(s.DefaultSchema()); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	return s, nil
}

// DefaultSchema returns the key used when a request names no schema.
func (s *Service) DefaultSchema() string {
	if s.cfg.Schema.DefaultKey != "" {
		return s.cfg.Schema.DefaultKey
	}
	return schema.DefaultKey
}

// Schemas describes every registered schema version.
func (s *Service) Schemas() []schema.Summary {
	regs := schema.All()
	out := make([]schema.Summary, len(regs))
	for i, reg := range regs {
		out[i] = reg.Summarize(false)
	}
	return out
}

// Schema describes one schema version including its documented rules.
func (s *Service) Schema(key string) (schema.Summary, error) {
	reg, ok := schema.Get(key)
	if !ok {
		return schema.Summary{}, fmt.Errorf("%w: %s", ErrUnknownSchema, key)
	}
	return reg.Summarize(true), nil
}

// validator returns the cached FileValidator for key, building it on first
// use or when the registered version was replaced.
func (s *Service) validator(key string) (*FileValidator, error) {
	reg, ok := schema.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.validators[key]; ok && v.Schema() == reg {
		return v, nil
	}

	opts := []FileOption{
		WithPlausibility(Plausibility{
			Enabled:            s.cfg.Schema.Plausibility,
			MaxDateLength:      s.cfg.Schema.MaxDateLength,
			ReplaceTypeFinding: s.cfg.Schema.ReplaceTypeFinding,
		}),
		WithWorkers(s.cfg.Upload.Workers),
	}
	if len(s.cfg.Schema.Encodings) > 0 {
		dec, err := NewDecoder(s.cfg.Schema.Encodings...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDecoder(dec))
	}

	v, err := NewFileValidator(reg, opts...)
	if err != nil {
		return nil, err
	}
	s.validators[key] = v
	return v, nil
}

// Validate checks one uploaded file against schemaKey (the default schema
// when empty) and records the run. Only fatal problems are returned as
// errors; data problems are findings in the run's report.
func (s *Service) Validate(ctx context.Context, schemaKey, fileName string, data []byte) (*Run, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if limit := s.cfg.Upload.MaxFileSize; limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(data), limit)
	}
	if schemaKey == "" {
		schemaKey = s.DefaultSchema()
	}

	v, err := s.validator(schemaKey)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "schema", schemaKey, "file", fileName, "bytes", len(data))
	logger.Debug("validation started")

	start := time.Now()
	report, err := v.ValidateContext(ctx, data)
	if err != nil {
		logger.Warn("validation aborted", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("validate %s: %w", fileName, err)
	}

	errs, warnings := report.Counts()
	run := &Run{
		ID:        runID,
		SchemaKey: schemaKey,
		FileName:  fileName,
		Encoding:  report.Encoding,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Lines:     report.Lines,
		Errors:    errs,
		Warnings:  warnings,
		Status:    RunValid,
		CreatedAt: start.UTC(),
		Duration:  time.Since(start),
		Report:    report,
	}
	if errs > 0 {
		run.Status = RunInvalid
	}

	if err := s.store.SaveRun(ctx, run); err != nil {
		logger.Error("failed to save run", "error", err)
		return nil, fmt.Errorf("save run: %w", err)
	}

	logger.Info("validation completed",
		"status", run.Status,
		"encoding", run.Encoding,
		"lines", run.Lines,
		"errors", errs,
		"warnings", warnings,
		"duplicate_keys", report.DuplicateKeys,
		"regime", report.Shape.Regime,
		"duration", run.Duration,
	)
	return run, nil
}

// GetRun returns a recorded run.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without reports.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = s.cfg.Schema.HistoryLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// UploadLimiterStatus returns the limiter state for health checks.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running validations finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
