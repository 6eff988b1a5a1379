package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notice struct {
	ClassID string `json:"classId"`
	Roll    string `json:"rollNumber"`
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage("reminder", notice{ClassID: "c1", Roll: "7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"classId":"c1","rollNumber":"7"}`, string(msg.Body))

	var got notice
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, "7", got.Roll)

	assert.Error(t, Message{Type: "reminder"}.Decode(&got))
}

func TestInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	out, err := q.Consume(ctx)
	require.NoError(t, err)
	for _, typ := range []string{"a", "b"} {
		require.NoError(t, q.Publish(ctx, Message{Type: typ}))
	}
	assert.Equal(t, "a", (<-out).Type)
	assert.Equal(t, "b", (<-out).Type)

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishHonorsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "b"}), context.DeadlineExceeded)
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "classattend:test:" + time.Now().Format("150405.000")
	defer client.Del(context.Background(), key)
	q := NewRedisQueue(client, key)

	msg, err := NewMessage("reminder", notice{ClassID: "c1", Roll: "7"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	out, err := q.Consume(ctx)
	require.NoError(t, err)
	got := <-out
	assert.Equal(t, "reminder", got.Type)
	assert.JSONEq(t, string(msg.Body), string(got.Body))
}
