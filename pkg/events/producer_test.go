package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEvent_WritesJSONWithKey(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	p := &Producer{writer: w}

	ev := UserEvent{Type: UserLoggedIn, UserID: "u-1", Email: "a@x.com", Role: "cook", OccurredAt: time.Unix(0, 0).UTC()}
	require.NoError(t, p.PublishEvent(context.Background(), "user_events", "u-1", ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "user_events", w.msgs[0].Topic)
	assert.Equal(t, "u-1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, UserLoggedIn, got["type"])
	assert.Equal(t, "cook", got["role"])
	assert.NotContains(t, got, "actor_id")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEvent_Errors(t *testing.T) {
	t.Parallel()

	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}}
	err := p.PublishEvent(context.Background(), "user_events", "k", UserEvent{Type: UserDeleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	err = p.PublishEvent(context.Background(), "user_events", "k", func() {})
	require.Error(t, err)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(nil)
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	var p Publisher = Discard{}
	require.NoError(t, p.PublishEvent(context.Background(), "t", "k", nil))
}

func TestProducer_Kafka(t *testing.T) {
	brokers := os.Getenv("KAFKA_TEST_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_TEST_BROKERS is required for tests")
	}
	broker := strings.Split(brokers, ",")[0]
	topic := "user_events_test"
	ensureTopic(t, broker, topic)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	conn, err := kafka.DialLeader(ctx, "tcp", broker, topic, 0)
	require.NoError(t, err)
	end, err := conn.ReadLastOffset()
	require.NoError(t, err)
	_ = conn.Close()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   time.Second,
	})
	defer r.Close()
	require.NoError(t, r.SetOffset(end))

	p, err := NewProducer([]string{broker})
	require.NoError(t, err)
	defer p.Close()

	id := uuid.NewString()
	require.NoError(t, p.PublishEvent(ctx, topic, id, UserEvent{Type: UserRegistered, UserID: id}))

	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)

	var ev UserEvent
	require.NoError(t, json.Unmarshal(m.Value, &ev))
	assert.Equal(t, UserRegistered, ev.Type)
	assert.Equal(t, id, ev.UserID)
}

func ensureTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	admin, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer admin.Close()

	err = admin.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		require.NoError(t, err)
	}
}
