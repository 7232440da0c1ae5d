package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compras/internal/models"
	"compras/internal/services"
)

var _ services.StatusPublisher = (*Hub)(nil)

func startHub(t *testing.T) (*Hub, func(sub Subscriber) *websocket.Conn) {
	t.Helper()
	hub := NewHub(nil, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	subs := make(chan Subscriber, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, <-subs); err != nil {
			t.Errorf("serve: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	dial := func(sub Subscriber) *websocket.Conn {
		subs <- sub
		want := hub.ClientCount() + 1
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.Eventually(t, func() bool { return hub.ClientCount() == want }, time.Second, 5*time.Millisecond)
		return conn
	}
	return hub, dial
}

func readEvent(t *testing.T, conn *websocket.Conn) (*StatusEvent, bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}
	var ev StatusEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return &ev, true
}

func TestHub_scopes_events(t *testing.T) {
	hub, dial := startHub(t)
	ops, sales := "area-ops", "area-sales"

	finance := dial(Subscriber{UserID: "fin", Role: models.RoleFinanzas})
	manager := dial(Subscriber{UserID: "mgr", Role: models.RoleGerente, AreaID: &ops})
	otherManager := dial(Subscriber{UserID: "mgr2", Role: models.RoleGerente, AreaID: &sales})
	requester := dial(Subscriber{UserID: "emp", Role: models.RoleEmpleado, AreaID: &ops})
	stranger := dial(Subscriber{UserID: "emp2", Role: models.RoleEmpleado, AreaID: &ops})

	req := &models.PurchaseRequest{
		RequestNumber: "SOL-202501-0001",
		RequesterID:   "emp",
		Requester:     &models.User{AreaID: &ops},
		Status:        models.StatusPendienteGerente,
	}
	req.ID = "req-1"
	hub.PublishStatusChange(req, models.StatusBorrador)

	for name, conn := range map[string]*websocket.Conn{"finance": finance, "manager": manager, "requester": requester} {
		ev, ok := readEvent(t, conn)
		require.True(t, ok, "%s should receive the event", name)
		assert.Equal(t, "request.status_changed", ev.Type)
		assert.Equal(t, "SOL-202501-0001", ev.RequestNumber)
		assert.Equal(t, models.StatusBorrador, ev.PreviousStatus)
		assert.Equal(t, models.StatusPendienteGerente, ev.Status)
	}
	for name, conn := range map[string]*websocket.Conn{"other manager": otherManager, "stranger": stranger} {
		_, ok := readEvent(t, conn)
		assert.False(t, ok, "%s should not receive the event", name)
	}
}

func TestHub_unregisters_on_close(t *testing.T) {
	hub, dial := startHub(t)
	conn := dial(Subscriber{UserID: "fin", Role: models.RoleFinanzas})
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_publish_after_stop_does_not_block(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	req := &models.PurchaseRequest{Status: models.StatusAprobada}
	for i := 0; i < 300; i++ {
		hub.PublishStatusChange(req, models.StatusAprobadaPorGerente)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://compras.local"})
	r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	assert.True(t, check(r), "no origin header")

	r.Header.Set("Origin", "http://compras.local")
	assert.True(t, check(r))
	r.Header.Set("Origin", "http://evil.local")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}
