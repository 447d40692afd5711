package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, msgs <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-msgs:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishConnectedRoundTrip(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	msgs, err := pubsub.Subscribe(context.Background(), TopicConnected)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishConnected(context.Background(), 324))

	msg := receiveOne(t, msgs)
	chainID, err := ChainIDFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(324), chainID)
}

func TestPublishSessionCleared(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	msgs, err := pubsub.Subscribe(context.Background(), TopicSessionCleared)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishSessionCleared(context.Background(), "pl_1"))

	msg := receiveOne(t, msgs)
	assert.JSONEq(t, `{"user_id":"pl_1"}`, string(msg.Payload))
}

func TestChainIDFromMessageRejectsGarbage(t *testing.T) {
	_, err := ChainIDFromMessage(message.NewMessage("id", []byte("not json")))
	assert.Error(t, err)
}
