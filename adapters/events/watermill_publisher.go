package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topics for wallet lifecycle events. Subscribers pick the topics they care
// about; payloads are JSON documents.
const (
	TopicSessionCleared  = "vaultline.session_cleared"
	TopicTokenRefreshed  = "vaultline.token_refreshed"
	TopicAccountSwitched = "vaultline.account_switched"
	TopicConnected       = "vaultline.connected"
)

// SessionEvent represents a session lifecycle event
type SessionEvent struct {
	UserID string `json:"user_id"`
}

// AccountEvent represents an account switch event
type AccountEvent struct {
	Address string `json:"address"`
}

// ConnectedEvent represents a provider connection event
type ConnectedEvent struct {
	ChainID uint64 `json:"chain_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// PublishSessionCleared publishes a session cleared event
func (p *WatermillPublisher) PublishSessionCleared(ctx context.Context, userID string) error {
	return p.publish(TopicSessionCleared, SessionEvent{UserID: userID})
}

// PublishTokenRefreshed publishes a token refreshed event
func (p *WatermillPublisher) PublishTokenRefreshed(ctx context.Context, userID string) error {
	return p.publish(TopicTokenRefreshed, SessionEvent{UserID: userID})
}

// PublishAccountSwitched publishes an account switched event
func (p *WatermillPublisher) PublishAccountSwitched(ctx context.Context, address string) error {
	return p.publish(TopicAccountSwitched, AccountEvent{Address: address})
}

// PublishConnected publishes a provider connection event
func (p *WatermillPublisher) PublishConnected(ctx context.Context, chainID uint64) error {
	return p.publish(TopicConnected, ConnectedEvent{ChainID: chainID})
}

// ChainIDFromMessage decodes a connected event payload back into its chain id.
func ChainIDFromMessage(msg *message.Message) (uint64, error) {
	var event ConnectedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return 0, fmt.Errorf("failed to decode connected event: %w", err)
	}
	return event.ChainID, nil
}
