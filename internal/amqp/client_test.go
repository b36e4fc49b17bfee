package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a local port that refuses connections.
func unreachableClient(t *testing.T) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return &Client{url: "amqp://guest:guest@" + addr + "/", exchangeName: "fintrack", queueName: "ledger_events"}
}

func TestPublishLedgerEvent_OpensCircuitOnBrokerOutage(t *testing.T) {
	c := unreachableClient(t)
	ev := NewLedgerEvent("tx1", "u1", OperationCreated, "expense")
	ctx := context.Background()

	for i := 0; i < maxFailures; i++ {
		err := c.PublishLedgerEvent(ctx, ev)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen, "attempt %d should still dial", i+1)
	}
	assert.Equal(t, StateOpen, atomic.LoadInt32(&c.state))

	// Request paths now fail fast without dialing.
	err := c.PublishLedgerEvent(ctx, ev)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// After the open window one trial publish is let through; its failure
	// reopens the circuit at once.
	c.mu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	c.mu.Unlock()
	err = c.PublishLedgerEvent(ctx, ev)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, c.PublishLedgerEvent(ctx, ev), ErrCircuitOpen)

	c.recordSuccess()
	assert.False(t, c.isCircuitOpen())
}

func TestPublishLedgerEvent_CancelledContext(t *testing.T) {
	c := unreachableClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishLedgerEvent(ctx, NewLedgerEvent("tx1", "u1", OperationDeleted, "income"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt64(&c.failureCount), "a cancelled caller is not a broker failure")
}

func TestReconnectBackoffIsCapped(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		d := exponentialBackoff(attempt)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, maxBackoff)
		prev = d
	}
	assert.Equal(t, time.Second, exponentialBackoff(0))
	assert.Equal(t, maxBackoff, exponentialBackoff(40))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
	assert.False(t, isConnectionError(errors.New("PRECONDITION_FAILED - inequivalent arg 'durable'")))
}

func TestLedgerEvent_WireFormat(t *testing.T) {
	ev := &LedgerEvent{
		TransactionID: "tx9",
		UserID:        "u2",
		Operation:     OperationUpdated,
		Kind:          "transfer",
		Timestamp:     time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
	data, err := ev.ToJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{
		"transaction_id": "tx9",
		"user_id":        "u2",
		"operation":      "updated",
		"kind":           "transfer",
		"timestamp":      "2024-03-15T09:30:00Z",
	}, raw)

	parsed, err := LedgerEventFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ev.TransactionID, parsed.TransactionID)
	assert.True(t, parsed.Timestamp.Equal(ev.Timestamp))

	_, err = LedgerEventFromJSON([]byte(`{"transaction_id": 42}`))
	assert.Error(t, err)
}

func TestNewLedgerEvent_StampsTime(t *testing.T) {
	ev := NewLedgerEvent("tx1", "u1", OperationCreated, "expense")
	assert.Equal(t, "expense", ev.Kind)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)
}
