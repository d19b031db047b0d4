package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/inkwell-app/inkwell/backend/models"
	storage "github.com/inkwell-app/inkwell/backend/storage/cache"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// globalCount is used in the round robin assignment of producers to jobs.
// Incremented atomically, Schedule runs on concurrent request goroutines.
var globalCount uint64

// Recomputer re-derives the mood point of one (user, day). Satisfied by
// mood.Aggregator.
type Recomputer interface {
	RecomputeFromEntries(ctx context.Context, userID primitive.ObjectID, dayISO string) (*models.MoodPoint, error)
}

// RecomputeMessage is the wire format of one recompute job. ID makes
// redeliveries detectable; delivery is at-least-once and the job itself is
// idempotent, so the dedup is only an optimization.
type RecomputeMessage struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Day    string `json:"day"`
}

// RecomputeProducerFactory creates RecomputeProducer instances.
type RecomputeProducerFactory struct{}

// RecomputeConsumerFactory creates RecomputeConsumer instances bound to the
// aggregator doing the actual work and the cache marking processed jobs.
type RecomputeConsumerFactory struct {
	Cache      storage.CacheInterface
	Aggregator Recomputer
}

// RecomputeProducer publishes recompute jobs onto the AMQP queue.
type RecomputeProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// RecomputeConsumer drains recompute jobs from the AMQP queue.
type RecomputeConsumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      *amqp.Queue
	cache      storage.CacheInterface
	aggregator Recomputer
}

// CreateProducer instantiates a RecomputeProducer over the given connection,
// channel and queue.
func (f *RecomputeProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &RecomputeProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer instantiates a RecomputeConsumer over the given connection,
// channel and queue.
func (f *RecomputeConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &RecomputeConsumer{
		conn:       conn,
		channel:    ch,
		queue:      queue,
		cache:      f.Cache,
		aggregator: f.Aggregator,
	}, nil
}

// Publish sends one serialized job to the queue.
func (rp *RecomputeProducer) Publish(body []byte) error {
	err := rp.channel.Publish(
		"",            // exchange
		rp.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume reads jobs off the queue and runs the recompute for each one.
// Malformed and transiently failing jobs are nacked back onto the queue;
// jobs already marked processed in the cache are acked and skipped. A
// recompute failure never propagates anywhere user-visible, it only logs.
func (rc *RecomputeConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := rc.channel.Consume(
		rc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:

				if !ok {
					return
				}

				message := &RecomputeMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal recompute message: %v", err)
					d.Nack(false, false) // drop it, it will never parse
					continue
				}

				processed, err := rc.cache.Get(ctx, "recompute_"+message.ID)
				if err != nil {
					// Ignore cache misses, handle other errors
					if err.Error() != "key does not exist" {
						log.Printf("error checking cache: %v", err)
						d.Nack(false, true)
						continue
					}
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				userID, err := primitive.ObjectIDFromHex(message.UserID)
				if err != nil {
					log.Printf("recompute message carries bad user id %q: %v", message.UserID, err)
					d.Nack(false, false)
					continue
				}

				if _, err := rc.aggregator.RecomputeFromEntries(ctx, userID, message.Day); err != nil {
					log.Printf("failed to recompute mood for user %s day %s: %v", message.UserID, message.Day, err)
					d.Nack(false, true) // requeue, the snapshot may heal
				} else {
					d.Ack(false)
					if err := rc.cache.Set(ctx, "recompute_"+message.ID, true); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildRecomputeQueue initializes the queue handling mood recompute jobs
// with the given numbers of producers and consumers.
func BuildRecomputeQueue(rabbitMQURL string, numProducers, numConsumers int, cache storage.CacheInterface, aggregator Recomputer) (*Queue, error) {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &RecomputeProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &RecomputeConsumerFactory{Cache: cache, Aggregator: aggregator}
	}

	return InitQueue(rabbitMQURL, "moodRecomputeQueue", prodFactories, consFactories)
}

// AMQPScheduler adapts the queue to the scheduler interface the journal
// service calls on the entry write path.
type AMQPScheduler struct {
	queue *Queue
}

// NewAMQPScheduler creates a scheduler publishing onto the given queue.
func NewAMQPScheduler(q *Queue) *AMQPScheduler {
	return &AMQPScheduler{queue: q}
}

// Schedule serializes one recompute job and publishes it with one of the
// queue's producers, round robin.
func (s *AMQPScheduler) Schedule(userID primitive.ObjectID, dayISO string) error {
	msg := &RecomputeMessage{
		ID:     primitive.NewObjectID().Hex(),
		UserID: userID.Hex(),
		Day:    dayISO,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal recompute message: %w", err)
	}

	producerCount := len(s.queue.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	next := atomic.AddUint64(&globalCount, 1) - 1
	producer := s.queue.Producers[next%uint64(producerCount)]

	return producer.Publish(body)
}
