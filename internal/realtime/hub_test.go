package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub, seat int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, seat, "u1")
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_NotifyDeliversJSON(t *testing.T) {
	hub := NewHub(4)
	conn := dial(t, newTestServer(t, hub, 3))
	require.Eventually(t, func() bool { return hub.Connected(3) }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(3, map[string]string{"command": "logout"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]string
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "logout", got["command"])
}

func TestHub_NotifyUnknownSeat(t *testing.T) {
	hub := NewHub(4)
	assert.ErrorIs(t, hub.Notify(9, map[string]string{"command": "time"}), ErrNotConnected)
}

func TestHub_DetachOnClientClose(t *testing.T) {
	hub := NewHub(4)
	conn := dial(t, newTestServer(t, hub, 5))
	require.Eventually(t, func() bool { return hub.Connected(5) }, time.Second, 10*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	assert.Eventually(t, func() bool { return !hub.Connected(5) }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NewConnectionReplacesOld(t *testing.T) {
	hub := NewHub(4)
	url := newTestServer(t, hub, 7)

	first := dial(t, url)
	require.Eventually(t, func() bool { return hub.Connected(7) }, time.Second, 10*time.Millisecond)
	hub.mu.RLock()
	old := hub.clients[7]
	hub.mu.RUnlock()

	second := dial(t, url)
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.clients[7] != nil && hub.clients[7] != old
	}, time.Second, 10*time.Millisecond)

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	require.NoError(t, hub.Notify(7, map[string]string{"command": "time"}))
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]string
	require.NoError(t, second.ReadJSON(&got))
	assert.Equal(t, "time", got["command"])
}
