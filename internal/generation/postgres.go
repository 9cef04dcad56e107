// internal/generation/postgres.go
package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"routeforge/internal/common/database"
	commonerrors "routeforge/internal/common/errors"
	"routeforge/internal/common/logger"
	"routeforge/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	// uniqueViolationCode is the Postgres error class for unique constraint hits.
	uniqueViolationCode = "23505"

	// constraintUserKey guards (user_id, idempotency_key): the same submission
	// may arrive twice but only one record holds the key.
	constraintUserKey = "ux_generation_records_user_key"

	// constraintNoteVersion guards (note_id, version): versions stay gap-free
	// because each admit claims exactly max+1.
	constraintNoteVersion = "ux_generation_records_note_version"

	// constraintUserActive is partial over pending/running rows: at most one
	// in-flight generation per user.
	constraintUserActive = "ux_generation_records_user_active"

	maxAdmitAttempts = 3
)

const recordColumns = "id, user_id, note_id, version, status, idempotency_key, payload, failure_reason, created_at, updated_at, deleted_at"

// PostgresStore persists generation records in PostgreSQL. Concurrency rules
// are not locked in process; they are the three unique indexes, and every
// race surfaces as a constraint violation this store translates into the
// package's error types.
type PostgresStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresStore(db *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "generation-store"}),
	}
}

// EnsureSchema creates the records table and its uniqueness indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS generation_records (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			note_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			payload JSONB,
			failure_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_generation_records_user_key
			ON generation_records (user_id, idempotency_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_generation_records_note_version
			ON generation_records (note_id, version)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_generation_records_user_active
			ON generation_records (user_id)
			WHERE status IN ('pending', 'running')`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return commonerrors.NewQueryExecutionFailedError("ensure schema", err)
		}
	}
	return nil
}

func (s *PostgresStore) Admit(ctx context.Context, userID, noteID, idempotencyKey string) (*models.GenerationRecord, bool, error) {
	// Replay check comes before everything else: a key that was admitted
	// once always resolves to the same record.
	existing, err := s.getByUserKey(ctx, userID, idempotencyKey)
	if err == nil {
		s.logger.Debug("replaying admitted generation", map[string]interface{}{
			"recordId": existing.ID,
			"userId":   userID,
		})
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, commonerrors.NewQueryExecutionFailedError("admit", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAdmitAttempts; attempt++ {
		id := uuid.New().String()
		now := time.Now().UTC()

		var version int
		err := s.db.QueryRow(ctx, `
			INSERT INTO generation_records (id, user_id, note_id, version, status, idempotency_key, created_at, updated_at)
			SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, 'pending', $4, $5, $5
			FROM generation_records
			WHERE note_id = $3
			RETURNING version`,
			id, userID, noteID, idempotencyKey, now).Scan(&version)
		if err == nil {
			rec := &models.GenerationRecord{
				ID:             id,
				UserID:         userID,
				NoteID:         noteID,
				Version:        version,
				Status:         models.StatusPending,
				IdempotencyKey: idempotencyKey,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			s.logger.Info("generation admitted", map[string]interface{}{
				"recordId": id,
				"userId":   userID,
				"noteId":   noteID,
				"version":  version,
			})
			return rec, false, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			switch pqErr.Constraint {
			case constraintUserKey:
				// A concurrent submit with the same key won the insert.
				rec, rerr := s.getByUserKey(ctx, userID, idempotencyKey)
				if rerr != nil {
					return nil, false, commonerrors.NewQueryExecutionFailedError("admit", rerr)
				}
				return rec, true, nil

			case constraintUserActive:
				blocker, berr := s.getActiveForUser(ctx, userID)
				if berr == nil {
					// The blocker may be the same submission arriving twice;
					// that case is a replay, not a conflict.
					if blocker.IdempotencyKey == idempotencyKey {
						return blocker, true, nil
					}
					return nil, false, &ConflictError{
						UserID:         userID,
						BlockingID:     blocker.ID,
						BlockingStatus: blocker.Status,
					}
				}
				if errors.Is(berr, sql.ErrNoRows) {
					// Blocker reached a terminal status between the insert
					// and the lookup; try again.
					lastErr = err
					continue
				}
				return nil, false, commonerrors.NewQueryExecutionFailedError("admit", berr)

			case constraintNoteVersion:
				// Lost the version race for this note; recompute max+1.
				lastErr = err
				continue
			}
		}
		return nil, false, commonerrors.NewDatabaseInsertFailedError(err)
	}

	return nil, false, commonerrors.NewDatabaseInsertFailedError(lastErr)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.GenerationRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM generation_records
		WHERE id = $1 AND deleted_at IS NULL`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError("get", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM generation_records
		WHERE status = 'pending' AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError("list pending", err)
	}
	defer rows.Close()

	var recs []*models.GenerationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, commonerrors.NewQueryExecutionFailedError("list pending", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError("list pending", err)
	}
	return recs, nil
}

func (s *PostgresStore) Begin(ctx context.Context, id string) (*models.GenerationRecord, error) {
	return s.transition(ctx, id, "start", `
		UPDATE generation_records
		SET status = 'running', updated_at = $2
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
		RETURNING `+recordColumns, time.Now().UTC())
}

func (s *PostgresStore) Complete(ctx context.Context, id string, payload *models.GenerationPayload) (*models.GenerationRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return s.transition(ctx, id, "complete", `
		UPDATE generation_records
		SET status = 'completed', payload = $2, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'running') AND deleted_at IS NULL
		RETURNING `+recordColumns, data, time.Now().UTC())
}

func (s *PostgresStore) Fail(ctx context.Context, id string, reason string) (*models.GenerationRecord, error) {
	return s.transition(ctx, id, "fail", `
		UPDATE generation_records
		SET status = 'failed', failure_reason = $2, updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'running') AND deleted_at IS NULL
		RETURNING `+recordColumns, reason, time.Now().UTC())
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) (*models.GenerationRecord, error) {
	return s.transition(ctx, id, "cancel", `
		UPDATE generation_records
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'running') AND deleted_at IS NULL
		RETURNING `+recordColumns, time.Now().UTC())
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.Exec(ctx, `
		UPDATE generation_records
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('completed', 'failed', 'cancelled') AND deleted_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return commonerrors.NewQueryExecutionFailedError("delete", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return commonerrors.NewQueryExecutionFailedError("delete", err)
	}
	if affected == 0 {
		return s.transitionFailure(ctx, id, "delete")
	}

	s.logger.Info("generation deleted", map[string]interface{}{"recordId": id})
	return nil
}

// transition runs a guarded UPDATE whose WHERE clause encodes the allowed
// source statuses. Zero matched rows means the record is missing, deleted,
// or in a status the operation does not permit.
func (s *PostgresStore) transition(ctx context.Context, id, op, query string, extra ...interface{}) (*models.GenerationRecord, error) {
	args := append([]interface{}{id}, extra...)
	rec, err := scanRecord(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.transitionFailure(ctx, id, op)
	}
	if err != nil {
		return nil, commonerrors.NewQueryExecutionFailedError(op, err)
	}

	s.logger.Info("generation transitioned", map[string]interface{}{
		"recordId": id,
		"status":   string(rec.Status),
	})
	return rec, nil
}

// transitionFailure distinguishes a missing or deleted record from one in
// the wrong status.
func (s *PostgresStore) transitionFailure(ctx context.Context, id, op string) error {
	rec, err := s.getAny(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return commonerrors.NewQueryExecutionFailedError(op, err)
	}
	if rec.DeletedAt != nil {
		return models.ErrNotFound
	}
	return &TransitionError{RecordID: id, Op: op, Status: rec.Status}
}

func (s *PostgresStore) getByUserKey(ctx context.Context, userID, idempotencyKey string) (*models.GenerationRecord, error) {
	// No deleted_at filter: a soft-deleted record still holds its key.
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM generation_records
		WHERE user_id = $1 AND idempotency_key = $2`, userID, idempotencyKey)
	return scanRecord(row)
}

func (s *PostgresStore) getActiveForUser(ctx context.Context, userID string) (*models.GenerationRecord, error) {
	// The partial unique index allows at most one such row.
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM generation_records
		WHERE user_id = $1 AND status IN ('pending', 'running')
		LIMIT 1`, userID)
	return scanRecord(row)
}

func (s *PostgresStore) getAny(ctx context.Context, id string) (*models.GenerationRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM generation_records
		WHERE id = $1`, id)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.GenerationRecord, error) {
	var (
		rec           models.GenerationRecord
		status        string
		payload       []byte
		failureReason sql.NullString
		deletedAt     sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.UserID, &rec.NoteID, &rec.Version, &status,
		&rec.IdempotencyKey, &payload, &failureReason, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = models.Status(status)
	if len(payload) > 0 {
		var p models.GenerationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode stored payload: %w", err)
		}
		rec.Payload = &p
	}
	if failureReason.Valid {
		rec.FailureReason = failureReason.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.DeletedAt = &t
	}
	return &rec, nil
}
