package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher serializes publishes on one channel, which amqp091 channels
// require when used from several goroutines.
type Publisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewPublisher(ch *amqp091.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// EnqueueBatch publishes msg on BatchQueue.
func (p *Publisher) EnqueueBatch(ctx context.Context, msg BatchMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(ctx, p.ch, BatchQueue, data)
}

// Notify publishes data on topic.
func (p *Publisher) Notify(ctx context.Context, topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishTopic(ctx, p.ch, topic, data)
}
