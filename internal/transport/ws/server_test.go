package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/hub"
	"github.com/xiaot623/roadchat/internal/logging"
	"github.com/xiaot623/roadchat/internal/protocol"
	"github.com/xiaot623/roadchat/internal/service"
	"github.com/xiaot623/roadchat/internal/session"
	"github.com/xiaot623/roadchat/internal/validation"
	"github.com/xiaot623/roadchat/policy"
	"github.com/xiaot623/roadchat/tests/helpers"
)

const (
	alice = "alice@onroad.io"
	bob   = "bob@onroad.io"
	carol = "carol@onroad.io"
	nora  = "nora@normal.io"

	secret = "test-cookie-secret"
)

type gateway struct {
	url     string
	hub     *hub.Hub
	service *service.Service
	signer  *session.Signer
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	log := logging.Discard()
	db := helpers.NewTestSQLiteStore(t)
	helpers.SeedUsers(t, db, map[string]domain.Role{
		alice: domain.RoleOnRoad,
		bob:   domain.RoleOnRoad,
		carol: domain.RoleOnRoad,
		nora:  domain.RoleNormal,
	})

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	sessions := helpers.NewSessionStore()
	sessions.Put("tok-alice", domain.ClientSession{UserEmail: alice, Role: domain.RoleOnRoad})
	sessions.Put("tok-bob", domain.ClientSession{UserEmail: bob, Role: domain.RoleOnRoad})
	sessions.Put("tok-carol", domain.ClientSession{UserEmail: carol, Role: domain.RoleOnRoad})
	sessions.Put("tok-nora", domain.ClientSession{UserEmail: nora, Role: domain.RoleNormal})

	signer := session.NewSigner(secret)
	verifier := session.NewVerifier(session.VerifierConfig{RequiredRole: string(domain.RoleOnRoad)}, signer, sessions, engine, log)

	h := hub.NewHub(log)
	svc := service.New(db, engine, log, domain.RoleOnRoad)
	svc.SetRoomJoiner(h)

	srv := NewServer(Options{
		PingInterval:   time.Minute,
		WriteTimeout:   time.Second,
		ReadTimeout:    2 * time.Minute,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 16,
		AllowedOrigins: []string{"*"},
	}, h, verifier, svc, validation.New(), log)

	e := echo.New()
	e.GET("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	return &gateway{
		url:     "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		hub:     h,
		service: svc,
		signer:  signer,
	}
}

func (g *gateway) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", "sessionId="+g.signer.Sign(token))
	}
	conn, resp, err := websocket.DefaultDialer.Dial(g.url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func (g *gateway) connect(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := g.dial(t, token)
	require.NoError(t, err)
	return conn
}

func (g *gateway) createChat(t *testing.T, owner, peer string) domain.ConversationID {
	t.Helper()
	id, err := g.service.CreateChat(context.Background(), &domain.ClientSession{UserEmail: owner, Role: domain.RoleOnRoad}, peer)
	require.NoError(t, err)
	return id
}

func (g *gateway) waitRoomSize(t *testing.T, room domain.ConversationID, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.hub.RoomSize(room) == n
	}, 2*time.Second, 5*time.Millisecond, "room %s never reached %d members", room, n)
}

func send(t *testing.T, conn *websocket.Conn, typ domain.EventType, requestID string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(protocol.Envelope{Type: typ, RequestID: requestID, Data: payload}))
}

type frame struct {
	Type      string              `json:"type"`
	RequestID string              `json:"request_id"`
	Code      string              `json:"code"`
	Data      domain.MessageEvent `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr, "unexpected frame: %s", data)
	assert.True(t, netErr.Timeout())
}

func TestMessageThenDeleteReachesPeerOnly(t *testing.T) {
	g := newGateway(t)
	room := g.createChat(t, alice, bob)

	a := g.connect(t, "tok-alice")
	b := g.connect(t, "tok-bob")
	g.waitRoomSize(t, room, 2)

	send(t, a, domain.EventTypeMessage, "r1", domain.AddMessageRequest{ChatID: room.String(), Message: "hello"})

	got := read(t, b)
	assert.Equal(t, string(domain.EventTypeFriendMessage), got.Type)
	assert.Equal(t, room, got.Data.ChatID)
	assert.Equal(t, alice, got.Data.AuthorEmail)
	assert.Equal(t, "hello", got.Data.Message)
	require.NotEmpty(t, got.Data.MessageID)

	ack := read(t, a)
	assert.Equal(t, protocol.TypeAck, ack.Type)
	assert.Equal(t, "r1", ack.RequestID)
	assert.Equal(t, got.Data.MessageID, ack.Data.MessageID)

	send(t, a, domain.EventTypeDelete, "", domain.DeleteMessageRequest{ChatID: room.String(), MessageID: got.Data.MessageID})

	got = read(t, b)
	assert.Equal(t, string(domain.EventTypeFriendDelete), got.Type)
	assert.True(t, got.Data.Deleted)
	assert.Empty(t, got.Data.Message)

	assertSilent(t, a)

	messages, err := g.service.GetChat(context.Background(), &domain.ClientSession{UserEmail: bob}, room.String())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Deleted)
}

func TestEditByNonAuthorIsNotBroadcast(t *testing.T) {
	g := newGateway(t)
	room := g.createChat(t, alice, bob)
	a := g.connect(t, "tok-alice")
	b := g.connect(t, "tok-bob")
	g.waitRoomSize(t, room, 2)

	send(t, a, domain.EventTypeMessage, "", domain.AddMessageRequest{ChatID: room.String(), Message: "mine"})
	msg := read(t, b)

	send(t, b, domain.EventTypeEdit, "e1", domain.EditMessageRequest{
		ChatID: room.String(), MessageID: msg.Data.MessageID, NewMessage: "yours now",
	})
	errFrame := read(t, b)
	assert.Equal(t, protocol.TypeError, errFrame.Type)
	assert.Equal(t, "e1", errFrame.RequestID)
	assert.Equal(t, protocol.ErrorCodeNotFound, errFrame.Code)
	assertSilent(t, a)
}

func TestUnprivilegedConnectionRejectedBeforeUpgrade(t *testing.T) {
	g := newGateway(t)

	tests := []struct {
		name   string
		token  string
		cookie string
		status int
	}{
		{name: "normal user", token: "tok-nora", status: http.StatusForbidden},
		{name: "no cookie", status: http.StatusUnauthorized},
		{name: "unknown session", token: "tok-ghost", status: http.StatusUnauthorized},
		{name: "bad signature", cookie: "tok-alice.AAAA", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			switch {
			case tt.cookie != "":
				header.Set("Cookie", "sessionId="+tt.cookie)
			case tt.token != "":
				header.Set("Cookie", "sessionId="+g.signer.Sign(tt.token))
			}
			conn, resp, err := websocket.DefaultDialer.Dial(g.url, header)
			if conn != nil {
				_ = conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, g.hub.ConnectionCount())
	assert.Equal(t, 0, g.hub.RoomCount())
}

func TestEventForUnjoinedRoomIsDropped(t *testing.T) {
	g := newGateway(t)
	room := g.createChat(t, alice, bob)
	b := g.connect(t, "tok-bob")
	c := g.connect(t, "tok-carol")
	g.waitRoomSize(t, room, 1)

	send(t, c, domain.EventTypeMessage, "x1", domain.AddMessageRequest{ChatID: room.String(), Message: "intrude"})
	errFrame := read(t, c)
	assert.Equal(t, protocol.ErrorCodeNotJoined, errFrame.Code)
	assertSilent(t, b)
}

func TestInvalidFrames(t *testing.T) {
	g := newGateway(t)
	room := g.createChat(t, alice, bob)
	a := g.connect(t, "tok-alice")
	g.waitRoomSize(t, room, 1)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))

	send(t, a, domain.EventTypeFriendMessage, "t1", map[string]string{})
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, read(t, a).Code)

	send(t, a, domain.EventTypeMessage, "t2", domain.AddMessageRequest{ChatID: "chat_users", Message: "x"})
	assert.Equal(t, protocol.ErrorCodeValidation, read(t, a).Code)

	send(t, a, domain.EventTypeMessage, "t3", domain.AddMessageRequest{ChatID: room.String()})
	assert.Equal(t, protocol.ErrorCodeValidation, read(t, a).Code)
}

func TestNewConversationJoinsLiveConnections(t *testing.T) {
	g := newGateway(t)
	a := g.connect(t, "tok-alice")
	c := g.connect(t, "tok-carol")
	require.Eventually(t, func() bool {
		return g.hub.ConnectionCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	room := g.createChat(t, alice, carol)
	assert.Equal(t, 2, g.hub.RoomSize(room))

	send(t, a, domain.EventTypeMessage, "", domain.AddMessageRequest{ChatID: room.String(), Message: "welcome"})
	got := read(t, c)
	assert.Equal(t, string(domain.EventTypeFriendMessage), got.Type)
	assert.Equal(t, "welcome", got.Data.Message)
}

func TestDisconnectReleasesRooms(t *testing.T) {
	g := newGateway(t)
	room := g.createChat(t, alice, bob)
	a := g.connect(t, "tok-alice")
	g.waitRoomSize(t, room, 1)

	require.NoError(t, a.Close())
	g.waitRoomSize(t, room, 0)
	assert.Eventually(t, func() bool {
		return g.hub.ConnectionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}
