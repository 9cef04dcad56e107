// internal/generation/memory.go
package generation

import (
	"context"
	"sort"
	"sync"
	"time"

	"routeforge/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store with the same admission and transition
// semantics as PostgresStore. It backs tests and the local tooling.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.GenerationRecord
	byKey   map[string]string // userID + NUL + idempotencyKey -> record id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.GenerationRecord),
		byKey:   make(map[string]string),
	}
}

func userKey(userID, idempotencyKey string) string {
	return userID + "\x00" + idempotencyKey
}

func (s *MemoryStore) Admit(ctx context.Context, userID, noteID, idempotencyKey string) (*models.GenerationRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replay check comes first, exactly as in the SQL store.
	if id, ok := s.byKey[userKey(userID, idempotencyKey)]; ok {
		return cloneRecord(s.records[id]), true, nil
	}

	for _, rec := range s.records {
		if rec.UserID == userID &&
			(rec.Status == models.StatusPending || rec.Status == models.StatusRunning) {
			return nil, false, &ConflictError{
				UserID:         userID,
				BlockingID:     rec.ID,
				BlockingStatus: rec.Status,
			}
		}
	}

	version := 1
	for _, rec := range s.records {
		if rec.NoteID == noteID && rec.Version >= version {
			version = rec.Version + 1
		}
	}

	now := time.Now().UTC()
	rec := &models.GenerationRecord{
		ID:             uuid.New().String(),
		UserID:         userID,
		NoteID:         noteID,
		Version:        version,
		Status:         models.StatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.records[rec.ID] = rec
	s.byKey[userKey(userID, idempotencyKey)] = rec.ID
	return cloneRecord(rec), false, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) ListPending(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*models.GenerationRecord
	for _, rec := range s.records {
		if rec.Status == models.StatusPending && rec.DeletedAt == nil {
			recs = append(recs, cloneRecord(rec))
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemoryStore) Begin(ctx context.Context, id string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.mutable(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending {
		return nil, &TransitionError{RecordID: id, Op: "start", Status: rec.Status}
	}

	rec.Status = models.StatusRunning
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string, payload *models.GenerationPayload) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.mutable(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending && rec.Status != models.StatusRunning {
		return nil, &TransitionError{RecordID: id, Op: "complete", Status: rec.Status}
	}

	p := *payload
	rec.Payload = &p
	rec.Status = models.StatusCompleted
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Fail(ctx context.Context, id string, reason string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.mutable(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending && rec.Status != models.StatusRunning {
		return nil, &TransitionError{RecordID: id, Op: "fail", Status: rec.Status}
	}

	rec.FailureReason = reason
	rec.Status = models.StatusFailed
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.mutable(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending && rec.Status != models.StatusRunning {
		return nil, &TransitionError{RecordID: id, Op: "cancel", Status: rec.Status}
	}

	rec.Status = models.StatusCancelled
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (s *MemoryStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.mutable(id)
	if err != nil {
		return err
	}
	if !rec.Status.Terminal() {
		return &TransitionError{RecordID: id, Op: "delete", Status: rec.Status}
	}

	now := time.Now().UTC()
	rec.DeletedAt = &now
	rec.UpdatedAt = now
	return nil
}

// mutable returns the live record behind id, or the error a failed guarded
// update would produce.
func (s *MemoryStore) mutable(id string) (*models.GenerationRecord, error) {
	rec, ok := s.records[id]
	if !ok || rec.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	return rec, nil
}

// cloneRecord hands callers their own copy so store state cannot be mutated
// from outside.
func cloneRecord(rec *models.GenerationRecord) *models.GenerationRecord {
	out := *rec
	if rec.Payload != nil {
		p := *rec.Payload
		out.Payload = &p
	}
	if rec.DeletedAt != nil {
		t := *rec.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}
