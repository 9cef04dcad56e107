// internal/generation/memory_test.go
package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeforge/internal/models"
)

// ==========================
// Admission
// ==========================

func TestMemoryStore_Admit_AssignsSequentialVersions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, replayed, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, models.StatusPending, first.Status)

	_, err = store.Complete(ctx, first.ID, &models.GenerationPayload{RouteName: "Loop"})
	require.NoError(t, err)

	second, _, err := store.Admit(ctx, "user-a", "note-1", "key-2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	// Another user contributes to the same note's version sequence.
	third, _, err := store.Admit(ctx, "user-b", "note-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, 3, third.Version)
}

func TestMemoryStore_Admit_ReplaySameKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	again, replayed, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Version, again.Version)
}

func TestMemoryStore_Admit_ActiveConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	_, _, err = store.Admit(ctx, "user-a", "note-2", "key-2")

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "user-a", conflict.UserID)
	assert.Equal(t, first.ID, conflict.BlockingID)
	assert.Equal(t, models.StatusPending, conflict.BlockingStatus)
}

func TestMemoryStore_Admit_ConflictClearsAfterTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	_, err = store.Cancel(ctx, first.ID)
	require.NoError(t, err)

	_, replayed, err := store.Admit(ctx, "user-a", "note-2", "key-2")
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestMemoryStore_Admit_DeletedRecordKeepsKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	_, err = store.Complete(ctx, first.ID, &models.GenerationPayload{})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(ctx, first.ID))

	// The key stays claimed by the tombstone.
	rec, replayed, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, rec.ID)
	assert.NotNil(t, rec.DeletedAt)
}

func TestMemoryStore_Admit_SingleFlightPerUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const submitters = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		admitted  int
		conflicts int
	)

	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start

			_, _, err := store.Admit(ctx, "user-a", "note-1", "key-"+string(rune('a'+n)))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.As(err, new(*ConflictError)):
				conflicts++
			default:
				t.Errorf("unexpected admit error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, submitters-1, conflicts)
}

// ==========================
// Lifecycle Transitions
// ==========================

func TestMemoryStore_Lifecycle_FullPath(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	running, err := store.Begin(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, running.Status)

	done, err := store.Complete(ctx, rec.ID, &models.GenerationPayload{RouteName: "Loop", WaypointCount: 2})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.Payload)

	// Returned records are copies: corrupting one must not touch the store.
	done.Payload.RouteName = "mutated"
	stored, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loop", stored.Payload.RouteName)
}

func TestMemoryStore_Begin_RequiresPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	_, err = store.Begin(ctx, rec.ID)
	require.NoError(t, err)

	_, err = store.Begin(ctx, rec.ID)

	var tErr *TransitionError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "start", tErr.Op)
	assert.Equal(t, models.StatusRunning, tErr.Status)
}

func TestMemoryStore_Complete_FromPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	done, err := store.Complete(ctx, rec.ID, &models.GenerationPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestMemoryStore_Terminal_AdmitsNoTransitions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	_, err = store.Complete(ctx, rec.ID, &models.GenerationPayload{})
	require.NoError(t, err)

	var tErr *TransitionError
	_, err = store.Begin(ctx, rec.ID)
	assert.True(t, errors.As(err, &tErr))
	_, err = store.Fail(ctx, rec.ID, "late failure")
	assert.True(t, errors.As(err, &tErr))
	_, err = store.Cancel(ctx, rec.ID)
	assert.True(t, errors.As(err, &tErr))
}

func TestMemoryStore_Fail_RecordsReason(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	failed, err := store.Fail(ctx, rec.ID, "planner: boom")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "planner: boom", failed.FailureReason)
}

// ==========================
// Soft Deletion
// ==========================

func TestMemoryStore_SoftDelete_RequiresTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)

	err = store.SoftDelete(ctx, rec.ID)

	var tErr *TransitionError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "delete", tErr.Op)
}

func TestMemoryStore_SoftDelete_HidesRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	_, err = store.Cancel(ctx, rec.ID)
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(ctx, rec.ID))

	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting twice reads as missing, not as a bad transition.
	assert.ErrorIs(t, store.SoftDelete(ctx, rec.ID), models.ErrNotFound)
}

func TestMemoryStore_Get_Unknown(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_ListPending_OrdersAndLimits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _, err := store.Admit(ctx, "user-a", "note-1", "key-1")
	require.NoError(t, err)
	second, _, err := store.Admit(ctx, "user-b", "note-2", "key-1")
	require.NoError(t, err)
	started, _, err := store.Admit(ctx, "user-c", "note-3", "key-1")
	require.NoError(t, err)
	third, _, err := store.Admit(ctx, "user-d", "note-4", "key-1")
	require.NoError(t, err)

	// Running records are no longer pending.
	_, err = store.Begin(ctx, started.ID)
	require.NoError(t, err)

	recs, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID},
		[]string{recs[0].ID, recs[1].ID, recs[2].ID})

	capped, err := store.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.Equal(t, first.ID, capped[0].ID)
	assert.Equal(t, second.ID, capped[1].ID)

	// Listed records are clones.
	recs[0].Status = models.StatusFailed
	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}
