package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"msgport/internal/config"
	"msgport/internal/journal"
	"msgport/internal/logging"
	"msgport/internal/object"
	"msgport/internal/wire"
)

// Service handles messages addressed to a named endpoint. Handle runs
// on the session's reader goroutine; a non-nil reply dictionary is sent
// back to the peer as a reply frame. Services that push unsolicited
// events hold on to the Session and use Push.
type Service interface {
	Name() string
	Handle(ctx context.Context, sess *Session, msg object.Dict) (object.Dict, error)
}

// Status describes broker runtime state for the control plane.
type Status struct {
	Running     bool
	SocketPath  string
	LockPath    string
	JournalPath string
	PID         int
	Sessions    int
	Services    []string
	StartedAt   time.Time
}

// Broker accepts message-plane connections and routes them to services.
type Broker struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *journal.Store
	lock    *flock.Flock
	limits  wire.Limits

	mu       sync.Mutex
	services map[string]Service
	sessions map[uint64]*Session
	nextID   uint64

	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   atomic.Bool
	startedAt time.Time
}

// New constructs a broker. The journal store may be nil when
// journaling is disabled.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger) (*Broker, error) {
	if cfg == nil {
		return nil, errors.New("broker requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broker{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "broker"),
		store:  store,
		lock:   flock.New(cfg.LockPath()),
		limits: wire.Limits{
			MaxFrameBytes:  cfg.Limits.MaxFrameBytes,
			MaxObjectDepth: cfg.Limits.MaxObjectDepth,
		},
		services: make(map[string]Service),
		sessions: make(map[uint64]*Session),
	}, nil
}

// Register adds a named service. Registration after Start is allowed;
// new sessions see the service immediately.
func (b *Broker) Register(svc Service) error {
	if svc == nil || svc.Name() == "" {
		return errors.New("service must have a name")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.services[svc.Name()]; exists {
		return fmt.Errorf("service %q already registered", svc.Name())
	}
	b.services[svc.Name()] = svc
	return nil
}

// Services returns registered service names, sorted.
func (b *Broker) Services() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.services))
	for name := range b.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Broker) lookup(name string) Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.services[name]
}

// Start acquires the instance lock and begins accepting connections.
func (b *Broker) Start(ctx context.Context) error {
	if b.running.Load() {
		return errors.New("broker already running")
	}

	ok, err := b.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another msgport daemon instance is already running")
	}

	socketPath := b.cfg.SocketPath()
	if err := os.RemoveAll(socketPath); err != nil {
		_ = b.lock.Unlock()
		return fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		_ = b.lock.Unlock()
		return fmt.Errorf("listen on socket: %w", err)
	}

	b.listener = listener
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.startedAt = time.Now()
	b.running.Store(true)

	b.logger.Info("broker listening",
		logging.String(logging.FieldEventType, "broker_started"),
		logging.String("socket", socketPath),
		logging.Int("services", len(b.Services())))

	b.wg.Add(1)
	go b.acceptLoop()
	return nil
}

func (b *Broker) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			select {
			case <-b.ctx.Done():
				return
			default:
			}
			b.logger.Warn("accept failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "broker_accept_failed"),
				logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
			continue
		}
		b.wg.Add(1)
		go func(c net.Conn) {
			defer b.wg.Done()
			b.handleConn(c)
		}(conn)
	}
}

// Close stops accepting, terminates sessions, and removes the socket.
func (b *Broker) Close() {
	if !b.running.Swap(false) {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.listener != nil {
		_ = b.listener.Close()
	}

	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, sess := range b.sessions {
		sessions = append(sessions, sess)
	}
	b.mu.Unlock()
	for _, sess := range sessions {
		sess.terminate(wire.CodeTerminated, "daemon shutting down")
	}

	b.wg.Wait()
	if err := os.RemoveAll(b.cfg.SocketPath()); err != nil {
		b.logger.Warn("failed to remove socket",
			logging.String("socket", b.cfg.SocketPath()),
			logging.Error(err))
	}
	if err := b.lock.Unlock(); err != nil {
		b.logger.Warn("failed to release lock", logging.Error(err))
	}
	b.logger.Info("broker stopped", logging.String(logging.FieldEventType, "broker_stopped"))
}

// Status reports runtime state.
func (b *Broker) Status() Status {
	b.mu.Lock()
	sessionCount := len(b.sessions)
	b.mu.Unlock()

	journalPath := ""
	if b.store != nil {
		journalPath = b.store.Path()
	}
	return Status{
		Running:     b.running.Load(),
		SocketPath:  b.cfg.SocketPath(),
		LockPath:    b.cfg.LockPath(),
		JournalPath: journalPath,
		PID:         os.Getpid(),
		Sessions:    sessionCount,
		Services:    b.Services(),
		StartedAt:   b.startedAt,
	}
}

// Journal exposes the delivery store to the control plane; nil when
// journaling is disabled.
func (b *Broker) Journal() *journal.Store {
	return b.store
}

func (b *Broker) addSession(sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sess.id = b.nextID
	b.sessions[sess.id] = sess
}

func (b *Broker) removeSession(sess *Session) {
	b.mu.Lock()
	delete(b.sessions, sess.id)
	b.mu.Unlock()
}

func (b *Broker) journalFrame(direction, service, kind string, body any, size int64, peer string) {
	if b.store == nil {
		return
	}
	objectType := ""
	if t := object.TypeOf(body); t != nil {
		objectType = t.String()
	}
	err := b.store.Record(b.ctx, journal.Entry{
		Service:    service,
		Direction:  direction,
		Kind:       kind,
		ObjectType: objectType,
		Bytes:      size,
		Peer:       peer,
	})
	if err != nil {
		b.logger.Warn("journal write failed", logging.Error(err),
			logging.String(logging.FieldService, service))
	}
}
