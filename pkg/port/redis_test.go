package port

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/flood"
	"github.com/nobletooth/parrot/pkg/scope"
	"github.com/nobletooth/parrot/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T, weighting cache.Weighting) *flood.Detector {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	registry := scope.NewRegistry[string](ctx, scope.Options{
		ShardCount: 2, ScopesPerShard: 8, CacheCapacity: 4, Weighting: weighting,
	})
	detector, err := flood.NewDetector(registry, flood.Options{
		Threshold: 0.5, ExactCapacity: 100, ExactFalsePositiveRate: 0.001,
	})
	require.NoError(t, err)
	return detector
}

func newTestHandler(t *testing.T, weighting cache.Weighting) *redisHandler {
	t.Helper()
	handler, err := newRedisHandler(newTestDetector(t, weighting))
	require.NoError(t, err)
	return handler
}

func run(handler *redisHandler, command string, args ...string) redisOutput {
	return handler.handle(redisCommand{command: command, args: args})
}

func TestRedisHandler_Basics(t *testing.T) {
	handler := newTestHandler(t, cache.WeightingIDF)
	unknownErrors := testutil.ToFloat64(commandsMetric.WithLabelValues("unknown", "error"))
	pings := testutil.ToFloat64(commandsMetric.WithLabelValues("PING", "ok"))

	assert.Equal(t, writeRedisString("PONG"), run(handler, "ping"))
	assert.Equal(t, closeRedisConnection(RedisOk), run(handler, "QUIT"))
	assert.Equal(t, writeRedisError(errors.New("unknown command 'FLUSHALL'")), run(handler, "flushall"))

	assert.Equal(t, pings+1, testutil.ToFloat64(commandsMetric.WithLabelValues("PING", "ok")))
	assert.Equal(t, unknownErrors+1, testutil.ToFloat64(commandsMetric.WithLabelValues("unknown", "error")))
}

func TestRedisHandler_SimAdd(t *testing.T) {
	handler := newTestHandler(t, cache.WeightingIDF)
	const text = "a$man$a$plan$a$canal$panama"

	assert.Equal(t, writeRedisArray(writeRedisBulk("-1"), writeRedisNil(), writeRedisNil()),
		run(handler, "SIM.ADD", "room", "1", text, "42"))
	assert.Equal(t, writeRedisArray(writeRedisBulk("0"), writeRedisBulk("1"), writeRedisBulk("42")),
		run(handler, "SIM.ADD", "room", "2", text))
	// Both live entries score 0, so the oldest one wins.
	assert.Equal(t, writeRedisArray(writeRedisBulk("0"), writeRedisBulk("1"), writeRedisBulk("42")),
		run(handler, "SIM.ADD", "room", "3", text, "44"))
	// Empty keys are never stored.
	assert.Equal(t, writeRedisArray(writeRedisBulk("-1"), writeRedisNil(), writeRedisNil()),
		run(handler, "SIM.ADD", "room", "", text))
	assert.Equal(t, writeRedisInt(3), run(handler, "SIM.LEN", "room"))

	assert.NotNil(t, run(handler, "SIM.ADD", "room", "4").err)
	assert.NotNil(t, run(handler, "SIM.ADD", "room", "4", text, "v", "extra").err)
}

func TestRedisHandler_SimCheck(t *testing.T) {
	handler := newTestHandler(t, cache.WeightingUniform)
	assert.Equal(t, writeRedisArray(writeRedisBulk("fresh"), writeRedisBulk("-1"), writeRedisNil()),
		run(handler, "SIM.CHECK", "room", "1", "hello world", "payload"))
	assert.Equal(t, writeRedisArray(writeRedisBulk("repeat"), writeRedisBulk("1"), writeRedisBulk("1")),
		run(handler, "SIM.CHECK", "room", "2", "hello world"))

	output := run(handler, "SIM.CHECK", "room", "3", "hello world!")
	require.Len(t, output.writeArray, 3)
	assert.Equal(t, "similar", *output.writeArray[0].writeBulk)

	assert.NotNil(t, run(handler, "SIM.CHECK", "room").err)
}

func TestRedisHandler_SimKeysAndScopes(t *testing.T) {
	handler := newTestHandler(t, cache.WeightingIDF)
	for _, key := range []string{"msg-1", "msg-2", "other", "msg-3", "msg-4"} {
		run(handler, "SIM.ADD", "room", key, "text of "+key)
	}
	run(handler, "SIM.ADD", "lobby", "hi", "hello")

	// Capacity is 4, so "msg-1" was evicted.
	assert.Equal(t, writeRedisArray(writeRedisBulk("msg-2"), writeRedisBulk("other"), writeRedisBulk("msg-3"),
		writeRedisBulk("msg-4")), run(handler, "SIM.KEYS", "room"))
	assert.Equal(t, writeRedisArray(writeRedisBulk("msg-2"), writeRedisBulk("msg-3"), writeRedisBulk("msg-4")),
		run(handler, "SIM.KEYS", "room", "msg-*"))
	assert.Equal(t, writeRedisArray(), run(handler, "SIM.KEYS", "nobody"))
	assert.Equal(t, writeRedisInt(0), run(handler, "SIM.LEN", "nobody"))
	assert.Equal(t, writeRedisInt(2), run(handler, "SIM.SCOPES"))

	assert.NotNil(t, run(handler, "SIM.KEYS").err)
	assert.NotNil(t, run(handler, "SIM.SCOPES", "extra").err)
	assert.NotNil(t, run(handler, "SIM.LEN").err)
}

func TestNewRedisHandler_NilDetector(t *testing.T) {
	_, err := newRedisHandler(nil)
	assert.Error(t, err)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "-1", formatScore(cache.NoMatchScore))
	assert.Equal(t, "0", formatScore(0))
	assert.Equal(t, "1", formatScore(1))
	assert.Equal(t, "0.25", formatScore(0.25))
}

func TestAwaitRedisServer(t *testing.T) {
	noClose := func() error { return nil }
	t.Run("server stops with an error", func(t *testing.T) {
		serverErr := make(chan error, 1)
		serverErr <- errors.New("address in use")
		err := awaitRedisServer(context.Background(), noClose, serverErr)
		assert.ErrorContains(t, err, "address in use")
	})
	t.Run("server stops without an error", func(t *testing.T) {
		serverErr := make(chan error, 1)
		serverErr <- nil
		err := awaitRedisServer(context.Background(), noClose, serverErr)
		require.Error(t, err)
		assert.Equal(t, "redis server stopped unexpectedly", err.Error())
	})
	t.Run("context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		closed := false
		err := awaitRedisServer(ctx, func() error { closed = true; return nil }, make(chan error))
		assert.NoError(t, err)
		assert.True(t, closed)
	})
	t.Run("close fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := awaitRedisServer(ctx, func() error { return errors.New("boom") }, make(chan error))
		assert.ErrorContains(t, err, "boom")
	})
}

func TestRunRedisServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	utils.SetTestFlag(t, "address", addr)

	ctx, cancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() { serverErr <- RunRedisServer(ctx, newTestDetector(t, cache.WeightingIDF)) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	reader := bufio.NewReader(conn)

	_, err = conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", line)

	_, err = conn.Write([]byte("*4\r\n$7\r\nSIM.ADD\r\n$4\r\nroom\r\n$1\r\n1\r\n$5\r\nhello\r\n"))
	require.NoError(t, err)
	for _, expected := range []string{"*3\r\n", "$2\r\n", "-1\r\n", "$-1\r\n", "$-1\r\n"} {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, expected, line)
	}
	require.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-serverErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not stop after the context was cancelled.")
	}
}
