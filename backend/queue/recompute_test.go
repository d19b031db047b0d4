package queue

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// countingProducer records every publish.
type countingProducer struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (p *countingProducer) Publish(body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *countingProducer) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bodies)
}

func TestAMQPSchedulerPublishesWellFormedJobs(t *testing.T) {
	producer := &countingProducer{}
	scheduler := NewAMQPScheduler(&Queue{Producers: []Producer{producer}})
	userID := primitive.NewObjectID()

	require.NoError(t, scheduler.Schedule(userID, "2025-03-10"))
	require.Equal(t, 1, producer.published())

	var msg RecomputeMessage
	require.NoError(t, json.Unmarshal(producer.bodies[0], &msg))
	assert.Equal(t, userID.Hex(), msg.UserID)
	assert.Equal(t, "2025-03-10", msg.Day)
	assert.NotEmpty(t, msg.ID)
}

func TestAMQPSchedulerFailsWithoutProducers(t *testing.T) {
	scheduler := NewAMQPScheduler(&Queue{})
	assert.Error(t, scheduler.Schedule(primitive.NewObjectID(), "2025-03-10"))
}

func TestAMQPSchedulerRoundRobinsUnderConcurrency(t *testing.T) {
	producers := []*countingProducer{{}, {}, {}}
	queue := &Queue{Producers: []Producer{producers[0], producers[1], producers[2]}}
	scheduler := NewAMQPScheduler(queue)

	const jobs = 60
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, scheduler.Schedule(primitive.NewObjectID(), "2025-03-10"))
		}()
	}
	wg.Wait()

	// Every job lands on exactly one producer, spread evenly.
	total := 0
	for _, p := range producers {
		assert.Equal(t, jobs/len(producers), p.published())
		total += p.published()
	}
	assert.Equal(t, jobs, total)
}
