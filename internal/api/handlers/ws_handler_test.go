package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Gorilla allows only one concurrent writer per connection; the forwarder
// goroutine and the read loop both write, so frames must go through the
// serialized wsConn.
func TestWSConnSerializesConcurrentWrites(t *testing.T) {
	const writers = 8
	const perWriter = 25

	upgrader := websocket.Upgrader{}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := &wsConn{conn: raw}

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					_ = conn.writeText([]byte(`{"type":"status","status":"processing"}`))
				}
			}()
		}
		wg.Wait()
		raw.Close()
		close(done)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	received := 0
	for {
		if _, _, err := client.ReadMessage(); err != nil {
			break
		}
		received++
	}
	<-done

	assert.Equal(t, writers*perWriter, received)
}
