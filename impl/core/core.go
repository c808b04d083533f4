package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"BotFlow/bot/flow"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/service/lanes"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotConfigured   = errors.New("service not configured")
)

type Repository interface {
	flow.Saver
	LoadSession(ctx context.Context, id string) (*entity.Session, error)
	FindSessionByChannel(ctx context.Context, clientID, phone string) (*entity.Session, error)

	SaveDiagnostic(ctx context.Context, d entity.Diagnostic) error
	ListDiagnostics(ctx context.Context, sessionID string, limit int64) ([]entity.Diagnostic, error)

	SaveCredentials(ctx context.Context, c *entity.WhatsappCredentials) error
	GetCredentials(ctx context.Context, id string) (*entity.WhatsappCredentials, error)

	CheckApiKey(key string) (string, error)
	GenerateApiKey(username string) (string, error)
}

type Engine interface {
	Continue(ctx context.Context, req entity.ContinueChatRequest) (*entity.ContinueChatResponse, error)
}

// Runner delivers engine output until the flow waits for the user.
type Runner interface {
	ExecuteUntilUserInputRequired(ctx context.Context, t flow.Turn) (*flow.Report, error)
}

type TurnQueue interface {
	Enqueue(job lanes.Job) error
}

// Locker serializes turns of one session across instances.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (func(), error)
}

type Channels interface {
	Open(ctx context.Context, ownerID string) (socket.ConnectionKey, error)
	Attach(ctx context.Context, key socket.ConnectionKey) error
	Close(key socket.ConnectionKey) error
	Status(key socket.ConnectionKey) (socket.ConnectionInfo, error)
	List() []socket.ConnectionInfo
}

type Broadcaster interface {
	BroadcastStatus(info socket.ConnectionInfo)
	BroadcastDiagnostic(d entity.Diagnostic)
}

type Core struct {
	repo        Repository
	engine      Engine
	runner      Runner
	queue       TurnQueue
	locker      Locker
	channels    Channels
	hub         Broadcaster
	authKey     string
	keys        map[string]string
	mu          sync.RWMutex
	turnTimeout time.Duration
	log         *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		keys:        make(map[string]string),
		turnTimeout: 10 * time.Minute,
		log:         log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}

func (c *Core) SetEngine(engine Engine) {
	c.engine = engine
}

func (c *Core) SetRunner(runner Runner) {
	c.runner = runner
}

func (c *Core) SetQueue(queue TurnQueue) {
	c.queue = queue
}

// SetLocker enables cross-instance exclusivity; without it only the local
// lanes serialize turns.
func (c *Core) SetLocker(locker Locker) {
	c.locker = locker
}

func (c *Core) SetChannels(channels Channels) {
	c.channels = channels
}

func (c *Core) SetBroadcaster(hub Broadcaster) {
	c.hub = hub
}

func (c *Core) SetTurnTimeout(d time.Duration) {
	if d > 0 {
		c.turnTimeout = d
	}
}
