package queue

import (
	"context"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryScheduler is an in-process stand-in for the AMQP queue: jobs pile up
// in a buffer and run when Flush is called (tests) or continuously when
// Start is running (broker-less single-process mode). Duplicate (user, day)
// jobs collapse while buffered, recompute is idempotent anyway.
type MemoryScheduler struct {
	aggregator Recomputer

	mu      sync.Mutex
	pending []RecomputeMessage
	wake    chan struct{}
}

// NewMemoryScheduler creates a MemoryScheduler over the given aggregator.
func NewMemoryScheduler(aggregator Recomputer) *MemoryScheduler {
	return &MemoryScheduler{
		aggregator: aggregator,
		wake:       make(chan struct{}, 1),
	}
}

// Schedule buffers one recompute job.
func (s *MemoryScheduler) Schedule(userID primitive.ObjectID, dayISO string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.pending {
		if job.UserID == userID.Hex() && job.Day == dayISO {
			return nil
		}
	}

	s.pending = append(s.pending, RecomputeMessage{
		ID:     primitive.NewObjectID().Hex(),
		UserID: userID.Hex(),
		Day:    dayISO,
	})

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// drain takes everything currently buffered.
func (s *MemoryScheduler) drain() []RecomputeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.pending
	s.pending = nil
	return jobs
}

// Flush runs every buffered job and returns how many ran. Failed jobs are
// logged and dropped, matching the fire-and-forget contract.
func (s *MemoryScheduler) Flush(ctx context.Context) int {
	jobs := s.drain()
	for _, job := range jobs {
		userID, err := primitive.ObjectIDFromHex(job.UserID)
		if err != nil {
			log.Printf("recompute job carries bad user id %q: %v", job.UserID, err)
			continue
		}
		if _, err := s.aggregator.RecomputeFromEntries(ctx, userID, job.Day); err != nil {
			log.Printf("failed to recompute mood for user %s day %s: %v", job.UserID, job.Day, err)
		}
	}
	return len(jobs)
}

// Start flushes the buffer whenever jobs arrive, until the context ends.
func (s *MemoryScheduler) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-s.wake:
				s.Flush(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
