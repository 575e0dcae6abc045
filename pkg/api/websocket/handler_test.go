package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/dagoml/pkg/adapters/events/memory"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStreamServer(t *testing.T) (*eventsmemory.EventBus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := eventsmemory.NewEventBus()
	router := gin.New()
	router.GET("/api/v1/runs/:id/ws", NewHandler(bus, zap.NewNop()).HandleRunStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStreamFiltersByRun(t *testing.T) {
	bus, base := newStreamServer(t)
	conn := dial(t, base+"/api/v1/runs/run-1/ws")

	require.Eventually(t, func() bool {
		return bus.Subscribers(domain.TopicRunEvents) == 1 && bus.Subscribers(domain.TopicTaskEvents) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.TopicTaskEvents, &domain.Event{ID: "x", Type: domain.EventTypeTaskCompleted, RunID: "run-2"}))
	require.NoError(t, bus.Publish(ctx, domain.TopicTaskEvents, &domain.Event{ID: "a", Type: domain.EventTypeTaskCompleted, RunID: "run-1", Key: "k"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "k", got.Key)
}

func TestStreamClosesOnTerminalEvent(t *testing.T) {
	bus, base := newStreamServer(t)
	conn := dial(t, base+"/api/v1/runs/run-1/ws")

	require.Eventually(t, func() bool {
		return bus.Subscribers(domain.TopicRunEvents) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.TopicRunEvents,
		&domain.Event{ID: "done", Type: domain.EventTypeRunCompleted, RunID: "run-1"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.EventTypeRunCompleted, got.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	// the handler's subscriptions end with the connection
	assert.Eventually(t, func() bool {
		return bus.Subscribers(domain.TopicRunEvents) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(domain.EventTypeRunFailed))
	assert.True(t, isTerminal(domain.EventTypeRunCancelled))
	assert.False(t, isTerminal(domain.EventTypeTaskCompleted))
}
