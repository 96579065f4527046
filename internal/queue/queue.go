package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreyvolkau/airtrail/internal/config"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

const (
	RecognitionQueueName   = "recognition_batches"
	TranscriptionQueueName = "transcription_jobs"
	ExchangeName           = "airtrail"
)

// Queue provides message queue operations: consuming recognition batches
// from the capture side and publishing transcription jobs for eligible
// segments.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a new queue client
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, name := range []string{RecognitionQueueName, TranscriptionQueueName} {
		_, err = channel.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		err = channel.QueueBind(name, name, ExchangeName, false, nil)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue %s: %w", name, err)
		}
	}

	return &Queue{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishTranscriptionJob publishes one analysis candidate to the
// transcription queue.
func (q *Queue) PublishTranscriptionJob(ctx context.Context, job *models.TranscriptionJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal transcription job: %w", err)
	}

	priority := uint8(job.Priority)
	if priority > 10 {
		priority = 10
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		TranscriptionQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Priority:     priority,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish transcription job: %w", err)
	}

	return nil
}

// ConsumeRecognitionBatches starts consuming recognition batches from the
// capture side. A handler error hands the batch to the retry queue with
// backoff; batches failing MaxRetries times are parked in the DLQ.
func (q *Queue) ConsumeRecognitionBatches(ctx context.Context, handler func(*models.RecognitionBatch) error) error {
	// One batch at a time per worker
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		RecognitionQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var batch models.RecognitionBatch
				if err := json.Unmarshal(msg.Body, &batch); err != nil {
					msg.Nack(false, false)
					continue
				}

				if err := handler(&batch); err != nil {
					// Retry with backoff instead of hot-looping a
					// nack-requeue against the same failure.
					if pubErr := q.PublishToRetryQueue(ctx, &batch, retryCountFrom(msg.Headers)); pubErr != nil {
						msg.Nack(false, true)
						continue
					}
					msg.Ack(false)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// GetQueueDepth returns the number of messages waiting in a queue
func (q *Queue) GetQueueDepth(name string) (int, error) {
	info, err := q.channel.QueueInspect(name)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
