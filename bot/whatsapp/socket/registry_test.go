package socket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BotFlow/bot/whatsapp"
)

// fakeService imitates the WhatsApp socket service: it greets with status
// frames and acknowledges send-message frames after ackDelay.
type fakeService struct {
	greeting []inboundFrame
	ackDelay time.Duration
	ack      func(outboundFrame) *inboundFrame

	mu          sync.Mutex
	clientIDs   []string
	frames      []outboundFrame
	inflight    int
	maxInflight int
	conn        *websocket.Conn
	writeMu     sync.Mutex
}

func (f *fakeService) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.clientIDs = append(f.clientIDs, r.URL.Query().Get("clientId"))
		f.conn = conn
		f.mu.Unlock()

		for _, g := range f.greeting {
			f.write(g)
		}
		for {
			var frame outboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			f.mu.Lock()
			f.frames = append(f.frames, frame)
			f.inflight++
			if f.inflight > f.maxInflight {
				f.maxInflight = f.inflight
			}
			f.mu.Unlock()

			go func(frame outboundFrame) {
				time.Sleep(f.ackDelay)
				f.mu.Lock()
				f.inflight--
				f.mu.Unlock()
				reply := &inboundFrame{Event: eventAck, RequestID: frame.RequestID, Status: ackOK}
				if f.ack != nil {
					reply = f.ack(frame)
				}
				if reply != nil {
					reply.RequestID = frame.RequestID
					f.write(*reply)
				}
			}(frame)
		}
	}
}

func (f *fakeService) write(frame inboundFrame) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	_ = conn.WriteJSON(frame)
}

func (f *fakeService) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.Message.Body)
	}
	return out
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
	inbound  []whatsapp.InboundMessage
}

func (r *recorder) ConnectionStatus(_ ConnectionKey, event StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, event.Status)
}

func (r *recorder) InboundMessage(_ ConnectionKey, msg whatsapp.InboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound = append(r.inbound, msg)
}

func (r *recorder) snapshot() ([]Status, []whatsapp.InboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...), append([]whatsapp.InboundMessage(nil), r.inbound...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readyGreeting() []inboundFrame {
	return []inboundFrame{
		{Event: eventStatus, Status: string(StatusQR), QR: "qr-code"},
		{Event: eventStatus, Status: string(StatusLoading)},
		{Event: eventStatus, Status: string(StatusReady), Phone: "5511999990000"},
	}
}

func startRegistry(t *testing.T, svc *fakeService, sendTimeout time.Duration) (*Registry, ConnectionKey, *recorder) {
	t.Helper()
	server := httptest.NewServer(svc.handler(t))
	t.Cleanup(server.Close)

	reg := NewRegistry("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", time.Second, sendTimeout, discardLogger())
	rec := &recorder{}
	reg.SetStatusListener(rec)
	reg.SetMessageListener(rec)
	t.Cleanup(reg.Shutdown)

	key, err := reg.Open(context.Background(), "owner")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, err := reg.Status(key)
		return err == nil && info.Status == StatusReady
	}, 2*time.Second, 10*time.Millisecond)
	return reg, key, rec
}

func text(body string) *whatsapp.WireMessage {
	return &whatsapp.WireMessage{Type: whatsapp.WireText, Body: body}
}

func TestRegistryPairingStatus(t *testing.T) {
	svc := &fakeService{greeting: readyGreeting()}
	reg, key, rec := startRegistry(t, svc, time.Second)

	info, err := reg.Status(key)
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", info.Phone)
	assert.Equal(t, "owner", info.OwnerID)

	statuses, _ := rec.snapshot()
	assert.Equal(t, []Status{StatusQR, StatusLoading, StatusReady}, statuses)

	svc.mu.Lock()
	assert.Equal(t, []string{key.String()}, svc.clientIDs)
	svc.mu.Unlock()

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, key.String(), list[0].ClientID)
}

func TestRegistryConcurrentOpensGetDistinctKeys(t *testing.T) {
	svc := &fakeService{}
	server := httptest.NewServer(svc.handler(t))
	t.Cleanup(server.Close)

	reg := NewRegistry("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", time.Second, time.Second, discardLogger())
	t.Cleanup(reg.Shutdown)
	same := time.UnixMilli(1700000000000)
	reg.now = func() time.Time { return same }

	const n = 8
	keys := make([]ConnectionKey, n)
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			keys[i], errs[i] = reg.Open(context.Background(), "owner")
		}(i)
	}
	close(start)
	wg.Wait()

	seen := make(map[ConnectionKey]bool)
	for i := range keys {
		require.NoError(t, errs[i])
		assert.False(t, seen[keys[i]], "key %s handed out twice", keys[i])
		seen[keys[i]] = true
	}
	assert.Len(t, reg.List(), n)
	assert.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.clientIDs) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistrySendFrame(t *testing.T) {
	svc := &fakeService{greeting: readyGreeting()}
	reg, key, _ := startRegistry(t, svc, time.Second)

	err := reg.Send(context.Background(), key, text("hello"), []string{"5511888880000"}, "sess-1")
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.frames, 1)
	frame := svc.frames[0]
	assert.Equal(t, eventSendMessage, frame.Event)
	assert.Equal(t, key.String(), frame.ClientID)
	assert.Equal(t, "sess-1", frame.SessionID)
	assert.Equal(t, []string{"5511888880000"}, frame.Phones)
	assert.NotEmpty(t, frame.RequestID)
	assert.Equal(t, "hello", frame.Message.Body)
}

func TestRegistrySerializesSendsPerKey(t *testing.T) {
	svc := &fakeService{greeting: readyGreeting(), ackDelay: 20 * time.Millisecond}
	reg, key, _ := startRegistry(t, svc, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.Send(context.Background(), key, text("x"), []string{"1"}, "s"))
		}()
	}
	wg.Wait()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Len(t, svc.frames, 5)
	assert.Equal(t, 1, svc.maxInflight)
}

func TestRegistryPreservesOrder(t *testing.T) {
	svc := &fakeService{greeting: readyGreeting(), ackDelay: 5 * time.Millisecond}
	reg, key, _ := startRegistry(t, svc, time.Second)

	want := []string{"one", "two", "three", "four"}
	for _, body := range want {
		require.NoError(t, reg.Send(context.Background(), key, text(body), []string{"1"}, "s"))
	}
	assert.Equal(t, want, svc.bodies())
}

func TestRegistrySendErrors(t *testing.T) {
	svc := &fakeService{
		greeting: readyGreeting(),
		ack: func(frame outboundFrame) *inboundFrame {
			switch frame.Message.Body {
			case "reject":
				return &inboundFrame{Event: eventAck, Status: ackRejected, Code: 404, Error: "not on whatsapp"}
			case "fail":
				return &inboundFrame{Event: eventAck, Status: "error", Code: 500, Error: "boom"}
			case "hang":
				return nil
			}
			return &inboundFrame{Event: eventAck, Status: ackOK}
		},
	}
	reg, key, _ := startRegistry(t, svc, 100*time.Millisecond)
	ctx := context.Background()

	err := reg.Send(ctx, key, text("reject"), []string{"1"}, "s")
	assert.True(t, errors.Is(err, ErrRecipientRejected))
	var chErr *ChannelError
	require.True(t, errors.As(err, &chErr))
	assert.Equal(t, 404, chErr.Status)

	err = reg.Send(ctx, key, text("fail"), []string{"1"}, "s")
	assert.True(t, errors.Is(err, ErrTransport))
	require.True(t, errors.As(err, &chErr))
	assert.Equal(t, 500, chErr.Status)

	err = reg.Send(ctx, key, text("hang"), []string{"1"}, "s")
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = reg.Send(ctx, key, text("ok"), nil, "s")
	assert.True(t, errors.Is(err, ErrRecipientRejected))

	err = reg.Send(ctx, ConnectionKey{OwnerID: "ghost", Epoch: 1}, text("ok"), []string{"1"}, "s")
	assert.True(t, errors.Is(err, ErrConnectionNotFound))

	assert.NoError(t, reg.Send(ctx, key, text("ok"), []string{"1"}, "s"))
}

func TestRegistryNotReady(t *testing.T) {
	svc := &fakeService{greeting: []inboundFrame{{Event: eventStatus, Status: string(StatusQR), QR: "qr"}}}
	server := httptest.NewServer(svc.handler(t))
	defer server.Close()

	reg := NewRegistry("ws"+strings.TrimPrefix(server.URL, "http"), time.Second, time.Second, discardLogger())
	defer reg.Shutdown()

	key, err := reg.Open(context.Background(), "owner")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, _ := reg.Status(key)
		return info.Status == StatusQR
	}, 2*time.Second, 10*time.Millisecond)

	err = reg.Send(context.Background(), key, text("hi"), []string{"1"}, "s")
	assert.True(t, errors.Is(err, ErrConnectionNotFound))
}

func TestRegistryInboundAndClose(t *testing.T) {
	svc := &fakeService{greeting: readyGreeting()}
	reg, key, rec := startRegistry(t, svc, time.Second)

	svc.write(inboundFrame{Event: eventMessage, Message: &whatsapp.InboundMessage{
		From: "5511888880000",
		Type: "text",
		Text: &whatsapp.InboundText{Body: "hi"},
	}})
	require.Eventually(t, func() bool {
		_, inbound := rec.snapshot()
		return len(inbound) == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, inbound := rec.snapshot()
	assert.Equal(t, "hi", inbound[0].Text.Body)

	require.NoError(t, reg.Close(key))
	_, err := reg.Status(key)
	assert.True(t, errors.Is(err, ErrConnectionNotFound))
	assert.True(t, errors.Is(reg.Close(key), ErrConnectionNotFound))

	statuses, _ := rec.snapshot()
	assert.Equal(t, StatusClosed, statuses[len(statuses)-1])
}

func TestExtraAcksDoNotStallReadLoop(t *testing.T) {
	key := ConnectionKey{OwnerID: "owner", Epoch: 1}
	c := newConnection(key, nil, discardLogger())
	ack := make(chan inboundFrame, 1)
	c.pending["req-1"] = ack

	handled := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			c.handle(inboundFrame{Event: eventAck, RequestID: "req-1", Status: ackOK})
		}
		c.handle(inboundFrame{Event: eventAck, RequestID: "unknown", Status: ackOK})
		close(handled)
	}()

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("read loop blocked on a duplicate ack")
	}
	assert.Len(t, ack, 1)
}
