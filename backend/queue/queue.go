// Package queue carries the asynchronous side work of entry writes: mood
// recompute jobs travel through a durable RabbitMQ queue so the entry
// response never waits on them.
package queue

import (
	"context"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// Producer publishes a message body to the queue.
type Producer interface {
	Publish(body []byte) error
}

// Consumer listens to messages from the queue and handles the stream.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory instantiates a Producer over an open connection, channel
// and declared queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory instantiates a Consumer over an open connection, channel
// and declared queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue holds the producers and consumers attached to one declared queue.
type Queue struct {
	Producers []Producer
	Consumers []Consumer
}

// connect dials RabbitMQ, opens a channel in confirm mode, and watches for
// connection closure.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		return nil, nil, err
	}

	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)

	go func() {
		err := <-notifyClose
		if err != nil {
			log.Fatalf("RabbitMQ connection closed: %v", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ, declares a durable queue under the given
// name, and builds the producers and consumers from the given factories.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, err
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return nil, err
	}

	var producers []Producer
	var consumers []Consumer

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			return nil, err
		}
		producers = append(producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, consumer)
	}

	return &Queue{
		Producers: producers,
		Consumers: consumers,
	}, nil
}

// StartConsumers starts every consumer in its own goroutine. The consumers
// stop when the context is cancelled; the returned WaitGroup can be used to
// wait for them to wind down. Abandoning in-flight jobs on shutdown is fine,
// recompute jobs are idempotent and re-triggerable.
func (q *Queue) StartConsumers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup

	for _, consumer := range q.Consumers {
		wg.Add(1)

		go func(c Consumer) {
			defer wg.Done()

			if _, err := c.Consume(ctx); err != nil {
				log.Printf("Error starting consumer: %v", err)
			}
			<-ctx.Done()
		}(consumer)
	}

	return &wg
}
