package queue

import (
	"context"
	"errors"

	"github.com/aeo-platform/aeo/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of redeliveries through the retry queue before a
// message is moved to the dead letter queue.
const MaxRetries = 10

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// nextRoute returns the queue a failed message is published to and its
// new retry count.
func nextRoute(queueName string, headers amqp091.Table, err error) (string, int) {
	retries := retryCount(headers)
	if errors.Is(err, ErrMalformed) || retries >= MaxRetries {
		return queueName + "_dlq", retries
	}
	return queueName + "_retry", retries + 1
}

// HandleProcessingError sends msg to the retry queue, or to the dead letter
// queue once it exhausted its retries or can never succeed. The original
// delivery is acknowledged only after the copy was published.
func HandleProcessingError(ctx context.Context, ch *amqp091.Channel, msg amqp091.Delivery, queueName string, procErr error) {
	target, retries := nextRoute(queueName, msg.Headers, procErr)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries)

	logger.Info("[Queue] Rerouting failed message", "queue", queueName, "target", target, "retries", retries)

	pubErr := ch.PublishWithContext(
		ctx,
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to reroute message", "target", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
