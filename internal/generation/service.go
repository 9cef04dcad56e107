// internal/generation/service.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "routeforge/internal/common/errors"
	"routeforge/internal/common/logger"
	"routeforge/internal/common/metrics"
	"routeforge/internal/export"
	"routeforge/internal/models"
	"routeforge/internal/planner"
	"routeforge/internal/routegeo"
	"routeforge/pkg/sanitize"
)

// Service wires admission, lifecycle transitions, planner calls and artifact
// exports together. All concurrency and idempotency guarantees come from the
// Store; the service adds validation, caching, metrics and logging.
type Service struct {
	store    Store
	cache    *ExportCache
	planner  planner.Planner
	creator  string
	logger   logger.Logger
	failures *commonerrors.ErrorHandler
}

// NewService builds a Service. cache and pl may be nil: exports then always
// render fresh, and Generate is unavailable.
func NewService(store Store, cache *ExportCache, pl planner.Planner, creator string, log logger.Logger) *Service {
	svcLog := log.WithFields(map[string]interface{}{"component": "generation-service"})
	return &Service{
		store:    store,
		cache:    cache,
		planner:  pl,
		creator:  creator,
		logger:   svcLog,
		failures: commonerrors.NewErrorHandler(svcLog),
	}
}

// Submit admits a generation request. The replayed flag is true when the
// idempotency key had already been admitted and the original record is
// returned instead of a new one.
func (s *Service) Submit(ctx context.Context, userID, noteID, idempotencyKey string) (*models.GenerationRecord, bool, error) {
	if userID == "" || noteID == "" || idempotencyKey == "" {
		return nil, false, commonerrors.NewInvalidArgumentError("userID, noteID and idempotencyKey are required")
	}

	rec, replayed, err := s.store.Admit(ctx, userID, noteID, idempotencyKey)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			metrics.GenerationAdmissions.WithLabelValues("conflict").Inc()
		} else {
			metrics.GenerationAdmissions.WithLabelValues("error").Inc()
		}
		return nil, false, err
	}

	if replayed {
		metrics.GenerationAdmissions.WithLabelValues("replayed").Inc()
		return rec, true, nil
	}

	metrics.GenerationAdmissions.WithLabelValues("admitted").Inc()
	metrics.GenerationsActive.Inc()
	s.logger.Info("generation submitted", map[string]interface{}{
		"recordId": rec.ID,
		"userId":   userID,
		"noteId":   noteID,
		"version":  rec.Version,
	})
	return rec, false, nil
}

// Get returns a live generation record.
func (s *Service) Get(ctx context.Context, id string) (*models.GenerationRecord, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns the oldest pending records, up to limit.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	return s.store.ListPending(ctx, limit)
}

// Begin moves a pending generation to running.
func (s *Service) Begin(ctx context.Context, id string) (*models.GenerationRecord, error) {
	rec, err := s.store.Begin(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.GenerationTransitions.WithLabelValues(string(models.StatusRunning)).Inc()
	return rec, nil
}

// Complete validates the route document and, only when it passes, moves the
// record to completed with the derived payload stored. A validation failure
// is returned without touching the record's status.
func (s *Service) Complete(ctx context.Context, id string, raw []byte) (*models.GenerationRecord, error) {
	route, err := routegeo.Validate(raw)
	if err != nil {
		s.logger.Warn("generation output rejected", map[string]interface{}{
			"recordId": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	rec, err := s.store.Complete(ctx, id, models.NewGenerationPayload(route))
	if err != nil {
		return nil, err
	}

	s.observeTerminal(rec)
	s.logger.Info("generation completed", map[string]interface{}{
		"recordId":  rec.ID,
		"routeName": rec.Payload.RouteName,
		"waypoints": rec.Payload.WaypointCount,
	})
	return rec, nil
}

// Fail moves an in-flight generation to failed with the given reason.
func (s *Service) Fail(ctx context.Context, id, reason string) (*models.GenerationRecord, error) {
	rec, err := s.store.Fail(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.observeTerminal(rec)
	s.logger.Warn("generation failed", map[string]interface{}{
		"recordId": rec.ID,
		"reason":   reason,
	})
	return rec, nil
}

// Cancel moves an in-flight generation to cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*models.GenerationRecord, error) {
	rec, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.observeTerminal(rec)
	s.logger.Info("generation cancelled", map[string]interface{}{"recordId": rec.ID})
	return rec, nil
}

// SoftDelete hides a terminal record from reads and drops its cached
// artifacts.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

// Export renders the stored route of a completed generation and returns the
// artifact bytes with a download filename. Renders are cached per record and
// format; the render clock is pinned to the record's completion time so
// repeated exports are byte-identical.
func (s *Service) Export(ctx context.Context, id, formatName string) ([]byte, string, error) {
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return nil, "", commonerrors.NewInvalidArgumentError(err.Error())
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if rec.Status != models.StatusCompleted || rec.Payload == nil {
		return nil, "", &TransitionError{RecordID: id, Op: "export", Status: rec.Status}
	}

	filename := exportFilename(rec.Payload.RouteName, format)

	if s.cache != nil {
		if artifact := s.cache.Get(ctx, id, format); artifact != nil {
			metrics.ArtifactExports.WithLabelValues(string(format), "hit").Inc()
			return artifact, filename, nil
		}
	}

	opts := export.DefaultOptions()
	opts.Creator = s.creator
	completedAt := rec.UpdatedAt
	opts.Now = func() time.Time { return completedAt }

	artifact, err := export.Convert(format, &rec.Payload.Route, opts)
	if err != nil {
		return nil, "", err
	}

	if s.cache != nil {
		s.cache.Put(ctx, id, format, artifact)
	}
	metrics.ArtifactExports.WithLabelValues(string(format), "miss").Inc()
	return artifact, filename, nil
}

// Generate drives one admission through planning to a terminal status. On
// planner or validation failure the record is marked failed and returned
// alongside the causal error. A concurrent cancel wins: the cancelled record
// comes back with a nil error.
func (s *Service) Generate(ctx context.Context, userID, noteID, idempotencyKey string) (*models.GenerationRecord, error) {
	if s.planner == nil {
		return nil, commonerrors.NewInvalidArgumentError("no planner configured")
	}

	rec, replayed, err := s.Submit(ctx, userID, noteID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if replayed && rec.Status.Terminal() {
		return rec, nil
	}
	return s.Process(ctx, rec)
}

// Process drives an already admitted record to a terminal status. Records
// that reached a terminal status elsewhere come back unchanged; a record
// another worker already started is reported through Begin's transition
// error. Failure and cancellation semantics match Generate.
func (s *Service) Process(ctx context.Context, rec *models.GenerationRecord) (*models.GenerationRecord, error) {
	if s.planner == nil {
		return nil, commonerrors.NewInvalidArgumentError("no planner configured")
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	if rec.Status == models.StatusPending {
		started, err := s.Begin(ctx, rec.ID)
		if err != nil {
			if cancelled := s.cancelledRecord(ctx, rec.ID, err); cancelled != nil {
				return cancelled, nil
			}
			return nil, err
		}
		rec = started
	}

	raw, err := s.plan(ctx, planner.Request{UserID: rec.UserID, NoteID: rec.NoteID})
	if err != nil {
		return s.markFailed(rec.ID, fmt.Sprintf("planner: %v", err)), err
	}

	completed, err := s.Complete(ctx, rec.ID, raw)
	if err != nil {
		var vErr *routegeo.ValidationError
		if errors.As(err, &vErr) {
			return s.markFailed(rec.ID, err.Error()), err
		}
		if cancelled := s.cancelledRecord(ctx, rec.ID, err); cancelled != nil {
			return cancelled, nil
		}
		return nil, err
	}
	return completed, nil
}

// plannerRetryDelay is the base backoff between planner attempts. The delay
// doubles per retry.
var plannerRetryDelay = 500 * time.Millisecond

// plan calls the planner, retrying transient failures within the error
// code's retry budget before giving up.
func (s *Service) plan(ctx context.Context, req planner.Request) ([]byte, error) {
	delay := plannerRetryDelay
	for attempt := 1; ; attempt++ {
		raw, err := s.planner.Plan(ctx, req)
		if err == nil {
			return raw, nil
		}
		if !s.failures.ShouldRetry(err, attempt) {
			s.failures.LogTerminal("plan", err)
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// markFailed records a failure outside the caller's context, which may
// already be expired when the planner call is what failed.
func (s *Service) markFailed(id, reason string) *models.GenerationRecord {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := s.Fail(ctx, id, reason)
	if err != nil {
		if cancelled := s.cancelledRecord(ctx, id, err); cancelled != nil {
			return cancelled
		}
		s.logger.Error("failed to record generation failure", map[string]interface{}{
			"recordId": id,
			"error":    err.Error(),
		})
		return nil
	}
	return rec
}

// cancelledRecord resolves a transition error against a cancelled record,
// returning the record when cancellation is what blocked the transition.
func (s *Service) cancelledRecord(ctx context.Context, id string, err error) *models.GenerationRecord {
	var tErr *TransitionError
	if !errors.As(err, &tErr) || tErr.Status != models.StatusCancelled {
		return nil
	}
	rec, gerr := s.store.Get(ctx, id)
	if gerr != nil {
		return nil
	}
	return rec
}

func (s *Service) observeTerminal(rec *models.GenerationRecord) {
	metrics.GenerationTransitions.WithLabelValues(string(rec.Status)).Inc()
	metrics.GenerationsActive.Dec()
	metrics.GenerationDuration.WithLabelValues(string(rec.Status)).
		Observe(rec.UpdatedAt.Sub(rec.CreatedAt).Seconds())
}

func exportFilename(routeName string, format export.Format) string {
	name := sanitize.Filename(routeName)
	if name == "" {
		name = "route"
	}
	return name + "." + format.Ext()
}
