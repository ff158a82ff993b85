package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/payments-gateway/internal/infrastructure/config"
)

const (
	testGroup = "payments-gateway"
	waitFor   = 3 * time.Second
	tick      = 10 * time.Millisecond
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// pendingCount returns -1 when the group cannot be inspected.
func pendingCount(client *redis.Client, stream string) int64 {
	p, err := client.XPending(context.Background(), stream, testGroup).Result()
	if err != nil {
		return -1
	}
	return p.Count
}

func sendRequest(t *testing.T, client *redis.Client, payload, replyTo, correlationID string) string {
	t.Helper()
	id, err := client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: testTopic,
		Values: map[string]any{
			FieldPayload:       payload,
			FieldReplyTo:       replyTo,
			FieldCorrelationID: correlationID,
		},
	}).Result()
	require.NoError(t, err)
	return id
}

func serverOptions(consumer string, claimIdle time.Duration) ServerOptions {
	return ServerOptions{
		Group:         testGroup,
		Consumer:      consumer,
		BatchSize:     10,
		BlockDuration: 20 * time.Millisecond,
		ReplyTTL:      time.Minute,
		ClaimIdle:     claimIdle,
		Logger:        zerolog.Nop(),
	}
}

// startServer runs srv until the test ends and fails the test if Run
// returns an error.
func startServer(t *testing.T, srv *RequestServer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("request server did not stop")
		}
	})
}

func createGroup(t *testing.T, client *redis.Client) {
	t.Helper()
	require.NoError(t, NewStreamConsumer(client, testTopic, testGroup, "setup", 1, time.Millisecond).CreateGroup(context.Background()))
}

func TestRequestServer_RunRepliesThenAcks(t *testing.T) {
	mr, client := setupMiniredis(t)
	createGroup(t, client)

	srv := NewRequestServer(client, serverOptions("worker-1", 0))
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		return map[string]string{"checkoutUrl": "https://checkout.example.test/c/1"}, nil
	})
	startServer(t, srv)

	sendRequest(t, client, `{"orderId":"o-1"}`, "replies:worker-a", "corr-1")

	require.Eventually(t, func() bool {
		return client.XLen(context.Background(), "replies:worker-a").Val() == 1 &&
			pendingCount(client, testTopic) == 0
	}, waitFor, tick)

	replies, err := client.XRange(context.Background(), "replies:worker-a", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "corr-1", replies[0].Values[FieldCorrelationID])
	assert.JSONEq(t, `{"checkoutUrl":"https://checkout.example.test/c/1"}`, replies[0].Values[FieldPayload].(string))
	assert.True(t, mr.TTL("replies:worker-a") > 0)
}

func TestRequestServer_ReplyFailureLeavesRequestPending(t *testing.T) {
	_, client := setupMiniredis(t)
	createGroup(t, client)

	w := newFakeWriter()
	w.setAddErr(errors.New("connection reset by peer"))

	srv := newRequestServer(client, w, serverOptions("worker-1", 50*time.Millisecond))
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) { return "ok", nil })
	startServer(t, srv)

	sendRequest(t, client, `{}`, "replies:worker-a", "corr-2")

	require.Eventually(t, func() bool { return w.attemptCount() >= 1 }, waitFor, tick)
	assert.Equal(t, int64(1), pendingCount(client, testTopic))

	// still pending, so it is claimed again once idle
	require.Eventually(t, func() bool { return w.attemptCount() >= 2 }, waitFor, tick)
	assert.Equal(t, int64(1), pendingCount(client, testTopic))
	assert.Zero(t, w.addCount())

	w.setAddErr(nil)

	require.Eventually(t, func() bool { return pendingCount(client, testTopic) == 0 }, waitFor, tick)
	assert.Equal(t, 1, w.addCount())
}

func TestRequestServer_ClaimsFromStalledConsumer(t *testing.T) {
	_, client := setupMiniredis(t)
	createGroup(t, client)

	id := sendRequest(t, client, `{"orderId":"o-3"}`, "replies:worker-b", "corr-3")

	// another consumer reads the request and never answers
	stalled := NewStreamConsumer(client, testTopic, testGroup, "worker-stalled", 10, 10*time.Millisecond)
	msgs, err := stalled.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	pending, err := client.XPending(context.Background(), testTopic, testGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"worker-stalled": 1}, pending.Consumers)

	srv := NewRequestServer(client, serverOptions("worker-2", 30*time.Millisecond))
	srv.Handle(testTopic, func(ctx context.Context, payload []byte) (any, error) {
		return map[string]string{"echo": string(payload)}, nil
	})
	startServer(t, srv)

	require.Eventually(t, func() bool {
		return client.XLen(context.Background(), "replies:worker-b").Val() == 1 &&
			pendingCount(client, testTopic) == 0
	}, waitFor, tick)

	replies, err := client.XRange(context.Background(), "replies:worker-b", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "corr-3", replies[0].Values[FieldCorrelationID])
	assert.JSONEq(t, `{"echo":"{\"orderId\":\"o-3\"}"}`, replies[0].Values[FieldPayload].(string))
}

func TestStreamConsumer_Lifecycle(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()
	consumer := NewStreamConsumer(client, testTopic, testGroup, "worker-1", 10, 10*time.Millisecond)

	require.NoError(t, consumer.CreateGroup(ctx))
	require.NoError(t, consumer.CreateGroup(ctx), "existing group is not an error")

	msgs, err := consumer.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	id := sendRequest(t, client, `{}`, "replies:x", "corr-4")

	msgs, err = consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "corr-4", msgs[0].Values[FieldCorrelationID])
	assert.Equal(t, int64(1), pendingCount(client, testTopic))

	claimed, err := consumer.ClaimStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, claimed, "not idle long enough")

	require.NoError(t, consumer.Ack(ctx, id))
	assert.Equal(t, int64(0), pendingCount(client, testTopic))
}

func TestStreamConsumer_CreateGroupStartsAtNewMessages(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	sendRequest(t, client, `{}`, "replies:x", "before-group")

	consumer := NewStreamConsumer(client, testTopic, testGroup, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, consumer.CreateGroup(ctx))

	msgs, err := consumer.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStreamPublisher_AgainstRedis(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, NewStreamPublisher(client, 1000).Publish(ctx, "payment.succeeded", map[string]any{
		"processorPaymentId": "ch_1",
		"orderId":            "o-1",
		"receiptUrl":         nil,
	}))

	msgs, err := client.XRange(ctx, "payment.succeeded", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"processorPaymentId":"ch_1","orderId":"o-1","receiptUrl":null}`, msgs[0].Values[FieldPayload].(string))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_GivesUpAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	client, err := NewClient(context.Background(), &config.RedisConfig{
		Host:              mr.Host(),
		Port:              port,
		ConnectRetries:    2,
		ConnectRetryDelay: time.Millisecond,
	}, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
