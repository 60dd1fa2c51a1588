package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeActiveSession, Body: []byte(`{"id":"s1"}`)}))

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	msg := <-messages
	require.Equal(t, TypeActiveSession, msg.Type)
	require.Equal(t, `{"id":"s1"}`, string(msg.Body))
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeCompletedSession, Body: []byte(`{"id":"s1","hours_worked":"2.50"}`)}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	require.Equal(t, msg, got)
}
