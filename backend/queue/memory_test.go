package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/inkwell-app/inkwell/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeRecomputer records which (user, day) recomputes ran.
type fakeRecomputer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRecomputer) RecomputeFromEntries(_ context.Context, userID primitive.ObjectID, dayISO string) (*models.MoodPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID.Hex()+" "+dayISO)
	return nil, f.err
}

func (f *fakeRecomputer) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestMemorySchedulerFlushRunsBufferedJobs(t *testing.T) {
	agg := &fakeRecomputer{}
	scheduler := NewMemoryScheduler(agg)
	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()

	require.NoError(t, scheduler.Schedule(userA, "2025-03-10"))
	require.NoError(t, scheduler.Schedule(userB, "2025-03-10"))

	ran := scheduler.Flush(context.Background())
	assert.Equal(t, 2, ran)
	assert.Equal(t, []string{userA.Hex() + " 2025-03-10", userB.Hex() + " 2025-03-10"}, agg.ran())

	// The buffer is empty afterwards.
	assert.Equal(t, 0, scheduler.Flush(context.Background()))
}

func TestMemorySchedulerCollapsesDuplicates(t *testing.T) {
	agg := &fakeRecomputer{}
	scheduler := NewMemoryScheduler(agg)
	userID := primitive.NewObjectID()

	require.NoError(t, scheduler.Schedule(userID, "2025-03-10"))
	require.NoError(t, scheduler.Schedule(userID, "2025-03-10"))
	require.NoError(t, scheduler.Schedule(userID, "2025-03-11"))

	assert.Equal(t, 2, scheduler.Flush(context.Background()))
	assert.Len(t, agg.ran(), 2)
}

func TestMemorySchedulerDropsFailedJobs(t *testing.T) {
	agg := &fakeRecomputer{err: errors.New("storage down")}
	scheduler := NewMemoryScheduler(agg)
	userID := primitive.NewObjectID()

	require.NoError(t, scheduler.Schedule(userID, "2025-03-10"))
	assert.Equal(t, 1, scheduler.Flush(context.Background()))

	// The failed job is not retried.
	assert.Equal(t, 0, scheduler.Flush(context.Background()))
	assert.Len(t, agg.ran(), 1)
}
