package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/support-console/internal/model"
)

// CommandStreamName is the JetStream stream that records agent commands.
const CommandStreamName = "CONSOLE_COMMANDS"

// EventSubject returns the wildcard subject of every inbound event.
func EventSubject(prefix string) string {
	return prefix + ".events.>"
}

// EventSubjectFor returns the subject of one inbound event type.
func EventSubjectFor(prefix string, typ model.EventType) string {
	return fmt.Sprintf("%s.events.%s", prefix, typ)
}

// CommandSubject returns the subject of one outbound command type.
func CommandSubject(prefix string, typ model.CommandType) string {
	return fmt.Sprintf("%s.commands.%s", prefix, typ)
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	prefix string
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client, prefix string) *StreamManager {
	return &StreamManager{client: client, prefix: prefix}
}

// EnsureStream ensures the command stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()
	if js == nil {
		return errors.New("JetStream is not enabled")
	}

	_, err := js.Stream(ctx, CommandStreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        CommandStreamName,
		Subjects:    []string{m.prefix + ".commands.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Agent console commands",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}
