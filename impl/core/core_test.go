package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"BotFlow/bot/flow"
	"BotFlow/bot/whatsapp"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
	"BotFlow/internal/service/lanes"
)

type memoryRepo struct {
	mu          sync.Mutex
	sessions    map[string]*entity.Session
	channels    map[string]string
	saved       []entity.SessionRecord
	diagnostics []entity.Diagnostic
	creds       []*entity.WhatsappCredentials
	keys        map[string]string
	keyLookups  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sessions: make(map[string]*entity.Session),
		channels: make(map[string]string),
		keys:     make(map[string]string),
	}
}

func (m *memoryRepo) SaveSession(_ context.Context, rec entity.SessionRecord, input *entity.Input, _ []entity.ChatLog, actions []entity.ClientSideAction, _ []entity.VisitedEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec)
	m.sessions[rec.ID] = &entity.Session{ID: rec.ID, State: rec.State, Input: input, ClientSideActions: actions}
	return nil
}

func (m *memoryRepo) LoadSession(_ context.Context, id string) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memoryRepo) FindSessionByChannel(_ context.Context, clientID, phone string) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.channels[clientID+"|"+phone]
	if !ok {
		return nil, nil
	}
	return m.sessions[id], nil
}

func (m *memoryRepo) SaveDiagnostic(_ context.Context, d entity.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diagnostics = append(m.diagnostics, d)
	return nil
}

func (m *memoryRepo) ListDiagnostics(_ context.Context, sessionID string, _ int64) ([]entity.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []entity.Diagnostic
	for _, d := range m.diagnostics {
		if d.SessionID == sessionID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *memoryRepo) SaveCredentials(_ context.Context, c *entity.WhatsappCredentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append(m.creds, c)
	return nil
}

func (m *memoryRepo) GetCredentials(_ context.Context, id string) (*entity.WhatsappCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) CheckApiKey(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyLookups++
	if name, ok := m.keys[key]; ok {
		return name, nil
	}
	return "", errors.New("api key not found")
}

func (m *memoryRepo) GenerateApiKey(username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "key-" + username
	m.keys[key] = username
	return key, nil
}

type recordingEngine struct {
	requests []entity.ContinueChatRequest
	err      error
}

func (e *recordingEngine) Continue(_ context.Context, req entity.ContinueChatRequest) (*entity.ContinueChatResponse, error) {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	next := *req.State
	next.CurrentBlockID = "after-reply"
	return &entity.ContinueChatResponse{
		Messages:        []entity.Message{{ID: "m1", Type: entity.BubbleText}},
		Input:           &entity.Input{ID: "next", Type: entity.TextInput},
		NewSessionState: &next,
	}, nil
}

type recordingRunner struct {
	turns []flow.Turn
}

func (r *recordingRunner) ExecuteUntilUserInputRequired(_ context.Context, t flow.Turn) (*flow.Report, error) {
	r.turns = append(r.turns, t)
	return &flow.Report{State: t.State, Input: t.Input}, nil
}

// syncQueue runs jobs inline so tests observe their effects immediately.
type syncQueue struct {
	lanes []string
	errs  []error
}

func (q *syncQueue) Enqueue(job lanes.Job) error {
	q.lanes = append(q.lanes, job.SessionID)
	q.errs = append(q.errs, job.Run(context.Background()))
	return nil
}

type busyLocker struct {
	held     map[string]bool
	released []string
}

func (l *busyLocker) Acquire(_ context.Context, sessionID string) (func(), error) {
	if l.held[sessionID] {
		return nil, errors.New("session is locked by another turn")
	}
	return func() { l.released = append(l.released, sessionID) }, nil
}

type recordingHub struct {
	statuses    []socket.ConnectionInfo
	diagnostics []entity.Diagnostic
}

func (h *recordingHub) BroadcastStatus(info socket.ConnectionInfo) {
	h.statuses = append(h.statuses, info)
}

func (h *recordingHub) BroadcastDiagnostic(d entity.Diagnostic) {
	h.diagnostics = append(h.diagnostics, d)
}

const (
	clientID = "owner_1700000000000"
	phone    = "5511999990000"
)

type CoreSuite struct {
	suite.Suite
	repo   *memoryRepo
	engine *recordingEngine
	runner *recordingRunner
	queue  *syncQueue
	hub    *recordingHub
	core   *Core
	ctx    context.Context
}

func TestCoreSuite(t *testing.T) {
	suite.Run(t, new(CoreSuite))
}

func (s *CoreSuite) SetupTest() {
	s.repo = newMemoryRepo()
	s.engine = &recordingEngine{}
	s.runner = &recordingRunner{}
	s.queue = &syncQueue{}
	s.hub = &recordingHub{}
	s.ctx = context.Background()

	s.core = New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.core.SetRepository(s.repo)
	s.core.SetEngine(s.engine)
	s.core.SetRunner(s.runner)
	s.core.SetQueue(s.queue)
	s.core.SetBroadcaster(s.hub)
	s.core.SetAuthKey("master")
}

func (s *CoreSuite) seedSession(id string, input *entity.Input) {
	s.repo.sessions[id] = &entity.Session{
		ID: id,
		State: &entity.SessionState{
			SessionID:         id,
			CurrentBlockID:    "ask",
			WhatsappComponent: &entity.WhatsappComponent{ClientID: clientID, Phone: phone},
		},
		Input: input,
	}
	s.repo.channels[clientID+"|"+phone] = id
}

func (s *CoreSuite) TestRunTurnContinuesPersistsThenDelivers() {
	s.seedSession("s1", nil)

	report, err := s.core.RunTurn(s.ctx, "s1", entity.Reply("hello"))
	s.Require().NoError(err)
	s.Require().NotNil(report)

	s.Require().Len(s.engine.requests, 1)
	req := s.engine.requests[0]
	s.Equal("hello", *req.Message)
	s.Equal(flow.EngineVersion, req.Version)
	s.Equal("ask", req.State.CurrentBlockID)

	s.Require().Len(s.repo.saved, 1)
	s.Equal("after-reply", s.repo.saved[0].State.CurrentBlockID)

	s.Require().Len(s.runner.turns, 1)
	s.Equal("s1", s.runner.turns[0].SessionID)
	s.Equal("next", s.runner.turns[0].Input.ID)
}

func (s *CoreSuite) TestRunTurnUnknownSession() {
	_, err := s.core.RunTurn(s.ctx, "missing", nil)
	s.ErrorIs(err, ErrSessionNotFound)
	s.Empty(s.engine.requests)
}

func (s *CoreSuite) TestRunTurnEngineFailureSavesNothing() {
	s.seedSession("s1", nil)
	s.engine.err = errors.New("engine down")

	_, err := s.core.RunTurn(s.ctx, "s1", nil)
	s.Error(err)
	s.Empty(s.repo.saved)
	s.Empty(s.runner.turns)
}

func (s *CoreSuite) TestRunTurnRespectsSessionLock() {
	s.seedSession("s1", nil)
	s.seedSession("s2", nil)
	locker := &busyLocker{held: map[string]bool{"s1": true}}
	s.core.SetLocker(locker)

	_, err := s.core.RunTurn(s.ctx, "s1", nil)
	s.Error(err)
	s.Empty(s.engine.requests)

	_, err = s.core.RunTurn(s.ctx, "s2", nil)
	s.NoError(err)
	s.Equal([]string{"s2"}, locker.released)
}

func (s *CoreSuite) TestHandleReplyQueuesOnSessionLane() {
	s.seedSession("s1", nil)

	s.Require().NoError(s.core.HandleReply("s1", nil))
	s.Equal([]string{"s1"}, s.queue.lanes)
	s.Require().Len(s.engine.requests, 1)
	s.Nil(s.engine.requests[0].Message)

	s.Error(s.core.HandleReply("", nil))
}

func (s *CoreSuite) TestInboundButtonReplyResolvesItemContent() {
	s.seedSession("s1", &entity.Input{
		ID:   "choice",
		Type: entity.ChoiceInput,
		Items: []entity.InputItem{
			{ID: "i1", Content: "Sales"},
			{ID: "i2", Content: "Support"},
		},
	})

	s.core.InboundMessage(socket.ConnectionKey{OwnerID: "owner", Epoch: 1700000000000}, whatsapp.InboundMessage{
		ID:   "wamid.1",
		From: phone,
		Type: "interactive",
		Interactive: &whatsapp.InboundInteractive{
			Type:        "button_reply",
			ButtonReply: &whatsapp.ButtonReply{ID: "i2", Title: "Support"},
		},
	})

	s.Equal([]string{"inbound:" + clientID + ":" + phone, "s1"}, s.queue.lanes)
	s.Require().Len(s.engine.requests, 1)
	s.Equal("Support", *s.engine.requests[0].Message)
}

func (s *CoreSuite) TestInboundFromUnknownSenderIsDropped() {
	s.seedSession("s1", nil)

	s.core.InboundMessage(socket.ConnectionKey{OwnerID: "owner", Epoch: 1700000000000}, whatsapp.InboundMessage{
		From: "5500000000000",
		Type: "text",
		Text: &whatsapp.InboundText{Body: "hi"},
	})

	s.Empty(s.engine.requests)
	s.Equal([]error{nil}, s.queue.errs)
}

func (s *CoreSuite) TestUnreadableInboundBecomesDiagnostic() {
	s.seedSession("s1", nil)

	s.core.InboundMessage(socket.ConnectionKey{OwnerID: "owner", Epoch: 1700000000000}, whatsapp.InboundMessage{
		ID:   "wamid.2",
		From: phone,
		Type: "text",
	})

	s.Empty(s.engine.requests)
	s.Require().Len(s.repo.diagnostics, 1)
	d := s.repo.diagnostics[0]
	s.Equal("s1", d.SessionID)
	s.Equal(entity.DiagnosticConversion, d.Kind)
	s.Equal("wamid.2", d.ItemID)
	s.Len(s.hub.diagnostics, 1)
}

func (s *CoreSuite) TestConnectionStatusStoresCredentialsWhenReady() {
	key := socket.ConnectionKey{OwnerID: "owner", Epoch: 1700000000000}

	s.core.ConnectionStatus(key, socket.StatusEvent{ClientID: clientID, Status: socket.StatusQR, QR: "qr-data"})
	s.Empty(s.repo.creds)

	s.core.ConnectionStatus(key, socket.StatusEvent{ClientID: clientID, Status: socket.StatusReady, Phone: phone})
	s.Require().Len(s.repo.creds, 1)
	s.Equal(clientID, s.repo.creds[0].ID)
	s.Equal(phone, s.repo.creds[0].Data.PhoneNumber)

	s.Require().Len(s.hub.statuses, 2)
	s.Equal("qr-data", s.hub.statuses[0].QR)
	s.Equal("owner", s.hub.statuses[1].OwnerID)
	s.Equal(socket.StatusReady, s.hub.statuses[1].Status)
}

func (s *CoreSuite) TestAuthentication() {
	user, err := s.core.AuthenticateByToken("master")
	s.Require().NoError(err)
	s.Equal("admin", user.Username)
	s.True(user.Admin)

	key, err := s.core.GenerateApiKey("ops")
	s.Require().NoError(err)
	name, err := s.core.ValidateToken(key)
	s.Require().NoError(err)
	s.Equal("ops", name)
	s.Zero(s.repo.keyLookups)

	s.repo.keys["stored"] = "dashboard"
	_, err = s.core.AuthenticateByToken("stored")
	s.Require().NoError(err)
	_, err = s.core.AuthenticateByToken("stored")
	s.Require().NoError(err)
	s.Equal(1, s.repo.keyLookups)

	_, err = s.core.AuthenticateByToken("bogus")
	s.Error(err)
	_, err = s.core.AuthenticateByToken("")
	s.Error(err)
}

func (s *CoreSuite) TestConnectionManagementNeedsChannels() {
	_, err := s.core.OpenConnection(s.ctx, "owner")
	s.ErrorIs(err, ErrNotConfigured)
	s.Nil(s.core.ListConnections())
}

func (s *CoreSuite) TestReattachRejectsBadClientID() {
	s.core.SetChannels(socket.NewRegistry("ws://127.0.0.1:1/ws", 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Error(s.core.ReattachConnection(s.ctx, "no-epoch"))
	s.Error(s.core.CloseConnection("owner_123"))
}
