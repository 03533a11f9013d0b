package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/support-console/internal/model"
)

var (
	// ErrMalformedEvent is returned for payloads that fail validation.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned for an unrecognized event type.
	ErrUnknownEvent = errors.New("unknown event type")
)

// envelope is the wire format of every event and command.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps a command payload in an envelope.
func Encode(typ model.CommandType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return json.Marshal(envelope{Type: string(typ), Data: data})
}

// Decode parses and validates one inbound event.
func Decode(raw []byte) (model.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformedEvent, env.Type)
	}

	switch model.EventType(env.Type) {
	case model.EventAgentRegistered:
		return decode(env, func(ev model.AgentRegisteredEvent) error {
			return need(ev.AgentID != "", "agentId")
		})
	case model.EventNewCustomerMessage:
		return decode(env, func(ev model.CustomerMessageEvent) error {
			if err := need(ev.ConversationID != "", "conversationId"); err != nil {
				return err
			}
			if ev.UserID != "" && ev.GuestID != "" {
				return fmt.Errorf("userId and guestId are mutually exclusive")
			}
			return need(strings.TrimSpace(ev.Message.Content) != "", "message.content")
		})
	case model.EventConversationTaken:
		return decode(env, func(ev model.ConversationTakenEvent) error {
			if err := need(ev.ConversationID != "", "conversationId"); err != nil {
				return err
			}
			return need(ev.AgentID != "", "agentId")
		})
	case model.EventNewAgentMessage:
		return decode(env, func(ev model.AgentMessageEvent) error {
			if err := need(ev.ConversationID != "", "conversationId"); err != nil {
				return err
			}
			return need(ev.Message.Content != "", "message.content")
		})
	case model.EventProviderStatusUpdate:
		return decode(env, func(ev model.ProviderStatusEvent) error {
			if err := need(ev.ExternalID != "", "externalId"); err != nil {
				return err
			}
			return need(ev.Status != "", "status")
		})
	case model.EventProviderTrackingUpdate:
		return decode(env, func(ev model.ProviderTrackingEvent) error {
			if err := need(ev.ExternalID != "", "externalId"); err != nil {
				return err
			}
			return need(ev.Shipment.TrackingNumber != "", "shipment.trackingNumber")
		})
	case model.EventProviderDelayAlert:
		return decode(env, func(ev model.ProviderDelayEvent) error {
			return need(ev.ExternalID != "", "externalId")
		})
	case model.EventConversationHistory:
		return decode(env, func(ev model.HistoryEvent) error {
			return need(ev.ConversationID != "", "conversationId")
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}

func decode[T model.Event](env envelope, validate func(T) error) (model.Event, error) {
	var ev T
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
	}
	if err := validate(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
	}
	return ev, nil
}

func need(ok bool, field string) error {
	if !ok {
		return fmt.Errorf("missing %s", field)
	}
	return nil
}
