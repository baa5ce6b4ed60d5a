package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConnPair upgrades a single connection and returns both ends.
func newTestConnPair(t *testing.T) (server, client *ws.Conn) {
	t.Helper()

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConnCh := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConnCh:
	case <-time.After(time.Second):
		t.Fatal("server connection not established")
	}
	t.Cleanup(func() { server.Close() })

	return server, client
}

func TestClientWriter_DeliversInOrder(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())
	t.Cleanup(func() { cw.stop() })

	messages := []string{"first", "second", "third"}
	for _, msg := range messages {
		require.True(t, cw.trySend([]byte(msg)))
	}

	for _, want := range messages {
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, got, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestClientWriter_TrySendFullBuffer(t *testing.T) {
	server, _ := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())
	cw.stop() // run goroutine has exited, nothing drains the buffer

	for range messageBufferSize {
		assert.True(t, cw.trySend([]byte("queued")))
	}
	assert.False(t, cw.trySend([]byte("overflow")), "send into a full buffer must not block")
}

func TestClientWriter_StopConcurrent(t *testing.T) {
	server, _ := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cw.stop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent stop calls deadlocked")
	}
}

func TestClientWriter_StopGracefulSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)

	cw := newClientWriter(server, clockwork.NewRealClock())
	cw.stopGraceful("Server shutting down")

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure))
}
