package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesSessionConnections(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil)
	conn.SessionID = "sess_1"
	h.Register(conn)

	other := h.NewConnection(nil)
	other.SessionID = "sess_2"
	h.Register(other)

	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON("sess_1", map[string]string{"type": "message"}))

	select {
	case data := <-conn.Send:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "message", decoded["type"])
	case <-time.After(time.Second):
		t.Fatalf("broadcast never arrived")
	}

	// The other session's connection sees nothing.
	select {
	case <-other.Send:
		t.Fatalf("broadcast leaked across sessions")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil)
	conn.SessionID = "sess_1"
	h.Register(conn)
	require.Eventually(t, func() bool {
		return h.HasActiveConnections("sess_1")
	}, time.Second, 5*time.Millisecond)

	h.Unregister(conn)
	require.Eventually(t, func() bool {
		return !h.HasActiveConnections("sess_1")
	}, time.Second, 5*time.Millisecond)

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(time.Second):
		t.Fatalf("send channel not closed")
	}
}

func TestBindSessionMoves(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil)
	conn.SessionID = "sess_1"
	h.Register(conn)
	require.Eventually(t, func() bool {
		return h.HasActiveConnections("sess_1")
	}, time.Second, 5*time.Millisecond)

	h.BindSession(conn, "sess_2")
	assert.False(t, h.HasActiveConnections("sess_1"))
	assert.True(t, h.HasActiveConnections("sess_2"))
}
