// Package memory implements an in-process event publisher.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one published event, retained for inspection.
type Message struct {
	ID      string
	Topic   string
	Payload []byte
}

// Publisher collects published events in memory. It is the default
// publisher and doubles as a fake in tests.
type Publisher struct {
	mu       sync.Mutex
	nextID   int
	messages []Message
}

// NewPublisher creates an empty in-memory publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish marshals payload to JSON and appends it to the message log.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("msg-%d", p.nextID)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Payload: data})
	return id, nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
