package messaging

import (
	"context"
	"log/slog"
	"sync"

	"voteledger/contexts/governance/voting-ledger/ports"
)

// Kafka is the event bus adapter used by worker/outbox relay.
// Current implementation is in-process publish/subscribe while runtime wiring
// is finalized for external brokers. Delivery follows broker semantics: every
// consumer group subscribed to a topic receives each event once, spread
// round-robin across the group's members.
type Kafka struct {
	mu     sync.Mutex
	topics map[string]map[string]*groupMembers
	logger *slog.Logger
}

type groupMembers struct {
	channels []chan ports.EventEnvelope
	next     int
}

func NewKafka(_ []string, logger *slog.Logger) (*Kafka, error) {
	return &Kafka{
		topics: make(map[string]map[string]*groupMembers),
		logger: logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	k.mu.Lock()
	targets := make([]chan ports.EventEnvelope, 0, len(k.topics[topic]))
	for _, group := range k.topics[topic] {
		if len(group.channels) == 0 {
			continue
		}
		targets = append(targets, group.channels[group.next%len(group.channels)])
		group.next++
	}
	k.mu.Unlock()

	for _, target := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case target <- event:
		default:
			if k.logger != nil {
				k.logger.Warn("dropping event for slow subscriber",
					"event", "kafka_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
				)
			}
		}
	}

	if k.logger != nil {
		k.logger.Info("event published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return nil
}

func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch := make(chan ports.EventEnvelope, 128)

	k.mu.Lock()
	groups, ok := k.topics[topic]
	if !ok {
		groups = make(map[string]*groupMembers)
		k.topics[topic] = groups
	}
	group, ok := groups[consumerGroup]
	if !ok {
		group = &groupMembers{}
		groups[consumerGroup] = group
	}
	group.channels = append(group.channels, ch)
	k.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				k.removeMember(topic, consumerGroup, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil && k.logger != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (k *Kafka) removeMember(topic string, consumerGroup string, target chan ports.EventEnvelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	group, ok := k.topics[topic][consumerGroup]
	if !ok || len(group.channels) == 0 {
		return
	}
	filtered := make([]chan ports.EventEnvelope, 0, len(group.channels))
	for _, item := range group.channels {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	group.channels = filtered
	if len(group.channels) == 0 {
		delete(k.topics[topic], consumerGroup)
	}
}
