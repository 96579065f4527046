package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

const (
	DeadLetterQueueName    = "recognition_batches_dlq"
	DeadLetterExchangeName = "airtrail_dlq"
	RetryQueueName         = "recognition_batches_retry"
	MaxRetries             = 5
)

// SetupDeadLetterQueue sets up the dead letter infrastructure for
// recognition batches that repeatedly fail processing.
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Retry queue dead-letters back into the main recognition queue
	// after the per-message TTL elapses.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": RecognitionQueueName,
		"x-message-ttl":             60000,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishToRetryQueue re-queues a failed recognition batch with
// exponential backoff; batches exceeding MaxRetries go to the DLQ.
func (q *Queue) PublishToRetryQueue(ctx context.Context, batch *models.RecognitionBatch, retryCount int) error {
	if retryCount >= MaxRetries {
		return q.PublishToDeadLetterQueue(ctx, batch, "max retries exceeded")
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal recognition batch: %w", err)
	}

	headers := amqp.Table{
		"x-retry-count": retryCount + 1,
	}

	delay := calculateBackoffDelay(retryCount)

	err = q.channel.PublishWithContext(ctx,
		"",
		RetryQueueName,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   fmt.Sprintf("%d", delay.Milliseconds()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	return nil
}

// PublishToDeadLetterQueue parks a failed recognition batch for manual
// inspection.
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, batch *models.RecognitionBatch, reason string) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal recognition batch: %w", err)
	}

	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}

	err = q.channel.PublishWithContext(ctx,
		DeadLetterExchangeName,
		DeadLetterQueueName,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	return nil
}

// retryCountFrom reads the x-retry-count header written by
// PublishToRetryQueue. Missing or foreign headers count as zero.
func retryCountFrom(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// calculateBackoffDelay calculates exponential backoff delay
func calculateBackoffDelay(retryCount int) time.Duration {
	baseDelay := 1 * time.Minute
	delay := baseDelay * (1 << retryCount)

	// Cap at 1 hour
	if delay > 1*time.Hour {
		delay = 1 * time.Hour
	}

	return delay
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
