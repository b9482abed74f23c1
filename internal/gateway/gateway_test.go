package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAdapter struct {
	platform     string
	broadcastErr error

	mu         sync.Mutex
	sent       []*OutboundMessage
	broadcasts []*BroadcastMessage
	handler    MessageHandler
	closed     bool
}

func (s *stubAdapter) Platform() string              { return s.platform }
func (s *stubAdapter) Connect(context.Context) error { return nil }
func (s *stubAdapter) OnMessage(h MessageHandler)    { s.handler = h }
func (s *stubAdapter) Status() AdapterStatus         { return AdapterStatus{Platform: s.platform, Connected: true} }

func (s *stubAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, msg)
	return s.broadcastErr
}

func (s *stubAdapter) Close() error {
	s.closed = true
	return nil
}

func TestGatewayRoutesInboundAndOutbound(t *testing.T) {
	gw := NewGateway(zaptest.NewLogger(t))
	slack := &stubAdapter{platform: "slack"}
	gw.Register(slack)

	var got *InboundMessage
	gw.SetHandler(func(msg *InboundMessage) { got = msg })
	slack.handler(&InboundMessage{Platform: "slack", Content: "/help"})
	require.NotNil(t, got)
	assert.Equal(t, "/help", got.Content)

	require.NoError(t, gw.Send(context.Background(), &OutboundMessage{Platform: "slack", ChannelID: "C1", Content: "hi"}))
	assert.Len(t, slack.sent, 1)

	err := gw.Send(context.Background(), &OutboundMessage{Platform: "irc"})
	assert.Error(t, err)
}

func TestGatewayStatusAndAdaptersSorted(t *testing.T) {
	gw := NewGateway(zaptest.NewLogger(t))
	gw.Register(&stubAdapter{platform: "slack"})
	gw.Register(&stubAdapter{platform: "discord"})
	gw.Register(NewRESTAdapter(zaptest.NewLogger(t)))

	assert.Equal(t, []string{"discord", "rest", "slack"}, gw.Adapters())
	statuses := gw.StatusAll()
	require.Len(t, statuses, 3)
	assert.Equal(t, "discord", statuses[0].Platform)
	assert.Equal(t, "rest", statuses[1].Platform)
	assert.Equal(t, "open_requests=0", statuses[1].Details)
}

func TestBroadcastCollectsErrors(t *testing.T) {
	gw := NewGateway(zaptest.NewLogger(t))
	ok := &stubAdapter{platform: "slack"}
	bad := &stubAdapter{platform: "discord", broadcastErr: errors.New("rate limited")}
	gw.Register(ok)
	gw.Register(bad)

	err := gw.Broadcast(context.Background(), &BroadcastMessage{Type: BroadcastAlert, Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: rate limited")
	assert.Len(t, ok.broadcasts, 1)

	err = gw.Broadcast(context.Background(), &BroadcastMessage{Type: BroadcastAlert, Platforms: []string{"slack"}})
	require.NoError(t, err)
	assert.Len(t, ok.broadcasts, 2)
	assert.Len(t, bad.broadcasts, 1)
}

func TestBroadcasterHistory(t *testing.T) {
	gw := NewGateway(zaptest.NewLogger(t))
	gw.Register(&stubAdapter{platform: "slack"})
	b := NewBroadcaster(gw, zaptest.NewLogger(t))

	require.Error(t, b.Send(context.Background(), &BroadcastMessage{}))

	for i := 0; i < maxBroadcastHistory+5; i++ {
		require.NoError(t, b.Broadcast(context.Background(), "announcement", fmt.Sprintf("n%d", i), "body"))
	}
	all := b.History(0)
	require.Len(t, all, maxBroadcastHistory)
	assert.Equal(t, "n5", all[0].Message.Title)
	assert.Equal(t, []string{"slack"}, all[0].Targets)

	last := b.History(2)
	require.Len(t, last, 2)
	assert.Equal(t, fmt.Sprintf("n%d", maxBroadcastHistory+4), last[1].Message.Title)
}

func TestRESTAdapterCollectsReplies(t *testing.T) {
	a := NewRESTAdapter(zaptest.NewLogger(t))
	a.OnMessage(func(msg *InboundMessage) {
		assert.Equal(t, "rest", msg.Platform)
		assert.Equal(t, "alice", msg.UserName)
		_ = a.Send(context.Background(), &OutboundMessage{ChannelID: msg.ChannelID, Content: "one"})
		_ = a.Send(context.Background(), &OutboundMessage{ChannelID: msg.ChannelID, Content: "two"})
	})
	ts := httptest.NewServer(a.Routes())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"user_name": "alice", "content": "/x"})
	resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply RESTReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, []string{"one", "two"}, reply.Messages)
	assert.Equal(t, "one\ntwo", reply.Content)
	assert.Equal(t, "open_requests=0", a.Status().Details)
}

func TestRESTAdapterWaitsForAsyncReply(t *testing.T) {
	a := NewRESTAdapter(zaptest.NewLogger(t))
	a.OnMessage(func(msg *InboundMessage) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = a.Send(context.Background(), &OutboundMessage{ChannelID: msg.ChannelID, Content: "late"})
		}()
	})
	ts := httptest.NewServer(a.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader([]byte(`{"content":"/x"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var reply RESTReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "late", reply.Content)
}

func TestRESTAdapterTimeoutAndValidation(t *testing.T) {
	a := NewRESTAdapter(zaptest.NewLogger(t))
	a.SetTimeout(20 * time.Millisecond)
	a.OnMessage(func(*InboundMessage) {})
	ts := httptest.NewServer(a.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/message", "application/json", bytes.NewReader([]byte(`{"content":"/x"}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/message", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Error(t, a.Send(context.Background(), &OutboundMessage{ChannelID: "gone"}))
}

type failingAdapter struct {
	stubAdapter
}

func (f *failingAdapter) Connect(context.Context) error { return errors.New("bad token") }

func TestConnectAllKeepsGoingAfterFailure(t *testing.T) {
	gw := NewGateway(zaptest.NewLogger(t))
	gw.Register(&failingAdapter{stubAdapter{platform: "discord"}})
	gw.Register(&stubAdapter{platform: "slack"})

	err := gw.ConnectAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect discord: bad token")
	assert.NotContains(t, err.Error(), "slack")
}
