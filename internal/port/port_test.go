package port_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"msgport/internal/broker"
	"msgport/internal/journal"
	"msgport/internal/object"
	"msgport/internal/port"
	"msgport/internal/testsupport"
)

// collector buffers handler deliveries so tests can assert on them.
type collector struct {
	events chan object.Dict
	errs   chan error
}

func newCollector() *collector {
	return &collector{
		events: make(chan object.Dict, 16),
		errs:   make(chan error, 16),
	}
}

func (c *collector) HandleEvent(event object.Dict, err error) {
	if err != nil {
		c.errs <- err
		return
	}
	c.events <- event
}

func (c *collector) waitEvent(t *testing.T) object.Dict {
	t.Helper()
	select {
	case event := <-c.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func (c *collector) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.errs:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error delivery")
		return nil
	}
}

// slowService delays completion so the send barrier is observable.
type slowService struct {
	delay time.Duration
	done  atomic.Bool
}

func (s *slowService) Name() string { return "test.slow" }

func (s *slowService) Handle(_ context.Context, _ *broker.Session, msg object.Dict) (object.Dict, error) {
	time.Sleep(s.delay)
	s.done.Store(true)
	return object.Dict{"handled": msg.GetString("payload", "")}, nil
}

// pushService captures the session so the test can push events later.
type pushService struct {
	sessions chan *broker.Session
}

func (p *pushService) Name() string { return "test.push" }

func (p *pushService) Handle(_ context.Context, sess *broker.Session, _ object.Dict) (object.Dict, error) {
	select {
	case p.sessions <- sess:
	default:
	}
	return nil, nil
}

func startBroker(t *testing.T, extra ...broker.Service) (*broker.Broker, string, *journal.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	b, err := broker.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}
	if err := broker.RegisterBuiltins(b); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	for _, svc := range extra {
		if err := b.Register(svc); err != nil {
			t.Fatalf("register %s: %v", svc.Name(), err)
		}
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("broker.Start: %v", err)
	}
	t.Cleanup(b.Close)
	return b, cfg.SocketPath(), store
}

func TestConnectMissingSocket(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.sock")
	conn, err := port.Connect(missing, "port.echo", newCollector())
	if err == nil {
		conn.Close()
		t.Fatal("expected error connecting to missing socket")
	}
}

func TestConnectEmptyService(t *testing.T) {
	_, socketPath, _ := startBroker(t)
	conn, err := port.Connect(socketPath, "", newCollector())
	if err == nil {
		conn.Close()
		t.Fatal("expected error for empty service name")
	}
}

func TestConnectUnknownService(t *testing.T) {
	_, socketPath, _ := startBroker(t)
	conn, err := port.Connect(socketPath, "no.such.service", newCollector())
	if err == nil {
		conn.Close()
		t.Fatal("expected error for unknown service")
	}
	if !errors.Is(err, object.ErrConnectionInvalid) {
		t.Fatalf("error = %v, want wrapped ErrConnectionInvalid", err)
	}
}

func TestEchoReply(t *testing.T) {
	_, socketPath, _ := startBroker(t)
	handler := newCollector()
	conn, err := port.Connect(socketPath, broker.EchoServiceName, handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	msg := object.Dict{"greeting": "hello", "n": int64(7)}
	if err := conn.Send(msg, false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	reply := handler.waitEvent(t)
	if got := reply.GetString("greeting", ""); got != "hello" {
		t.Errorf("reply greeting = %q, want %q", got, "hello")
	}
	if got := reply.GetInt("n", 0); got != 7 {
		t.Errorf("reply n = %d, want 7", got)
	}
}

func TestSendWaitBarrier(t *testing.T) {
	slow := &slowService{delay: 150 * time.Millisecond}
	_, socketPath, _ := startBroker(t, slow)

	handler := newCollector()
	conn, err := port.Connect(socketPath, slow.Name(), handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.Send(object.Dict{"payload": "work"}, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !slow.done.Load() {
		t.Fatal("Send returned before the service completed")
	}
	if elapsed := time.Since(start); elapsed < slow.delay {
		t.Errorf("Send returned after %v, want at least %v", elapsed, slow.delay)
	}

	// The reply is delivered before the completion ack for the same id.
	reply := handler.waitEvent(t)
	if got := reply.GetString("handled", ""); got != "work" {
		t.Errorf("reply handled = %q, want %q", got, "work")
	}
}

func TestSendFireAndForget(t *testing.T) {
	slow := &slowService{delay: 200 * time.Millisecond}
	_, socketPath, _ := startBroker(t, slow)

	handler := newCollector()
	conn, err := port.Connect(socketPath, slow.Name(), handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.Send(object.Dict{"payload": "async"}, false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= slow.delay {
		t.Errorf("fire-and-forget Send took %v, should not wait for the service", elapsed)
	}

	reply := handler.waitEvent(t)
	if got := reply.GetString("handled", ""); got != "async" {
		t.Errorf("reply handled = %q, want %q", got, "async")
	}
}

func TestPushedEvents(t *testing.T) {
	push := &pushService{sessions: make(chan *broker.Session, 1)}
	_, socketPath, _ := startBroker(t, push)

	handler := newCollector()
	conn, err := port.Connect(socketPath, push.Name(), handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(object.Dict{"cmd": "subscribe"}, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var sess *broker.Session
	select {
	case sess = <-push.sessions:
	case <-time.After(2 * time.Second):
		t.Fatal("service never saw the session")
	}

	if err := sess.Push(object.Dict{"kind": "tick", "seq": int64(1)}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	event := handler.waitEvent(t)
	if got := event.GetString("kind", ""); got != "tick" {
		t.Errorf("event kind = %q, want %q", got, "tick")
	}
}

func TestCloseDeliversTerminated(t *testing.T) {
	_, socketPath, _ := startBroker(t)
	handler := newCollector()
	conn, err := port.Connect(socketPath, broker.EchoServiceName, handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := handler.waitError(t); !errors.Is(err, object.ErrConnectionTerminated) {
		t.Fatalf("terminal error = %v, want ErrConnectionTerminated", err)
	}
	select {
	case err := <-handler.errs:
		t.Fatalf("second terminal delivery: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := conn.Send(object.Dict{"late": "msg"}, false); !errors.Is(err, object.ErrConnectionTerminated) {
		t.Fatalf("Send after Close = %v, want ErrConnectionTerminated", err)
	}
}

func TestBrokerShutdownTerminatesClients(t *testing.T) {
	b, socketPath, _ := startBroker(t)
	handler := newCollector()
	conn, err := port.Connect(socketPath, broker.EchoServiceName, handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	b.Close()
	if err := handler.waitError(t); !errors.Is(err, object.ErrConnectionTerminated) {
		t.Fatalf("terminal error = %v, want ErrConnectionTerminated", err)
	}
}

func TestRegistryService(t *testing.T) {
	_, socketPath, _ := startBroker(t)
	handler := newCollector()
	conn, err := port.Connect(socketPath, broker.RegistryServiceName, handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(object.Dict{"cmd": "list"}, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply := handler.waitEvent(t)
	services := reply.MustGetArray("services")
	found := false
	services.Apply(func(_ int, v any) bool {
		if v == broker.EchoServiceName {
			found = true
			return false
		}
		return true
	})
	if !found {
		t.Fatalf("registry listing %v missing %s", services, broker.EchoServiceName)
	}
}

func TestDeliveriesAreJournaled(t *testing.T) {
	_, socketPath, store := startBroker(t)
	handler := newCollector()
	conn, err := port.Connect(socketPath, broker.EchoServiceName, handler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(object.Dict{"probe": "x"}, true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	handler.waitEvent(t)

	entries, err := store.Recent(context.Background(), broker.EchoServiceName, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var inbound, outbound int
	for _, e := range entries {
		switch e.Direction {
		case journal.DirectionInbound:
			inbound++
		case journal.DirectionOutbound:
			outbound++
		}
	}
	if inbound == 0 || outbound == 0 {
		t.Fatalf("journal entries inbound=%d outbound=%d, want both recorded", inbound, outbound)
	}
}
