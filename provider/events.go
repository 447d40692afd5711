package provider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vaultline/vaultline/adapters/events"
)

// Events the provider surface emits to subscribers.
const (
	EventAccountsChanged = "accountsChanged"
	EventConnect         = "connect"
)

var eventTopics = map[string]string{
	EventAccountsChanged: events.TopicAccountSwitched,
	EventConnect:         events.TopicConnected,
}

type listenerSet struct {
	mu      sync.Mutex
	byEvent map[string][]context.CancelFunc
}

func newListenerSet() *listenerSet {
	return &listenerSet{byEvent: make(map[string][]context.CancelFunc)}
}

func (s *listenerSet) add(event string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEvent[event] = append(s.byEvent[event], cancel)
}

func (s *listenerSet) remove(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.byEvent[event] {
		cancel()
	}
	delete(s.byEvent, event)
}

func (s *listenerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for event, cancels := range s.byEvent {
		for _, cancel := range cancels {
			cancel()
		}
		delete(s.byEvent, event)
	}
}

// On subscribes a handler to a provider event. The payload follows EIP-1193:
// a string slice of addresses for accountsChanged, a {chainId} object for
// connect.
func (p *Provider) On(event string, handler func(payload any)) error {
	topic, ok := eventTopics[event]
	if !ok {
		return rpcErrorf(CodeInvalidParams, "unknown event %q", event)
	}

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := p.subscriber.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return err
	}
	p.listeners.add(event, cancel)

	go func() {
		for msg := range msgs {
			switch event {
			case EventAccountsChanged:
				var payload events.AccountEvent
				if err := json.Unmarshal(msg.Payload, &payload); err == nil {
					handler([]string{payload.Address})
				}
			case EventConnect:
				if chainID, err := events.ChainIDFromMessage(msg); err == nil {
					handler(map[string]string{"chainId": hexutil.EncodeUint64(chainID)})
				}
			}
			msg.Ack()
		}
	}()

	return nil
}

// RemoveListener drops every handler registered for the event.
func (p *Provider) RemoveListener(event string) {
	p.listeners.remove(event)
}

// Close drops all event subscriptions.
func (p *Provider) Close() {
	p.listeners.clear()
}
