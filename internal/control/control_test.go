package control_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"msgport/internal/broker"
	"msgport/internal/config"
	"msgport/internal/control"
	"msgport/internal/journal"
	"msgport/internal/port"
	"msgport/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	broker  *broker.Broker
	client  *control.Client
	stopped *atomic.Bool
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)

	b, err := broker.New(cfg, openJournal(t, cfg), nil)
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}
	if err := broker.RegisterBuiltins(b); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("broker.Start: %v", err)
	}
	t.Cleanup(b.Close)

	var stopped atomic.Bool
	srv, err := control.NewServer(context.Background(), cfg.ControlSocketPath(), b,
		func() { stopped.Store(true) }, nil)
	if err != nil {
		t.Fatalf("control.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := control.Dial(cfg.ControlSocketPath())
	if err != nil {
		t.Fatalf("control.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &fixture{cfg: cfg, broker: b, client: client, stopped: &stopped}
}

func openJournal(t *testing.T, cfg *config.Config) *journal.Store {
	t.Helper()
	if !cfg.Journal.Enabled {
		return nil
	}
	return testsupport.MustOpenJournal(t, cfg)
}

func TestPing(t *testing.T) {
	f := newFixture(t, testsupport.WithJournalDisabled())
	resp, err := f.client.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !resp.Pong {
		t.Error("Ping returned pong=false")
	}
	if resp.PID <= 0 {
		t.Errorf("Ping PID = %d, want positive", resp.PID)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, testsupport.WithJournalDisabled())
	resp, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !resp.Running {
		t.Error("Status.Running = false, want true")
	}
	if resp.SocketPath != f.cfg.SocketPath() {
		t.Errorf("Status.SocketPath = %q, want %q", resp.SocketPath, f.cfg.SocketPath())
	}
	if resp.ControlPath != f.cfg.ControlSocketPath() {
		t.Errorf("Status.ControlPath = %q, want %q", resp.ControlPath, f.cfg.ControlSocketPath())
	}
	if len(resp.Services) != 2 {
		t.Errorf("Status.Services = %v, want both builtins", resp.Services)
	}
	if resp.StartedAt == "" || resp.Uptime == "" {
		t.Errorf("Status started_at/uptime missing: %q %q", resp.StartedAt, resp.Uptime)
	}
}

func TestServices(t *testing.T) {
	f := newFixture(t, testsupport.WithJournalDisabled())
	resp, err := f.client.Services()
	if err != nil {
		t.Fatalf("Services: %v", err)
	}
	if len(resp.Names) != 2 {
		t.Fatalf("Services = %v, want 2 builtins", resp.Names)
	}
}

func TestJournalDisabled(t *testing.T) {
	f := newFixture(t, testsupport.WithJournalDisabled())

	tail, err := f.client.JournalTail("", 10)
	if err != nil {
		t.Fatalf("JournalTail: %v", err)
	}
	if tail.Enabled {
		t.Error("JournalTail.Enabled = true with journaling off")
	}

	stats, err := f.client.JournalStats()
	if err != nil {
		t.Fatalf("JournalStats: %v", err)
	}
	if stats.Enabled {
		t.Error("JournalStats.Enabled = true with journaling off")
	}

	if _, err := f.client.JournalPurge(7); err == nil {
		t.Error("JournalPurge should fail with journaling off")
	}
}

func TestJournalTailAndStats(t *testing.T) {
	f := newFixture(t)

	// Generate traffic so the journal has something to report.
	conn, err := port.Connect(f.cfg.SocketPath(), broker.EchoServiceName, nil)
	if err != nil {
		t.Fatalf("port.Connect: %v", err)
	}
	defer conn.Close()
	if err := conn.Send(map[string]any{"probe": "journal"}, true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	tail, err := f.client.JournalTail(broker.EchoServiceName, 10)
	if err != nil {
		t.Fatalf("JournalTail: %v", err)
	}
	if !tail.Enabled || len(tail.Entries) == 0 {
		t.Fatalf("JournalTail enabled=%v entries=%d, want traffic recorded", tail.Enabled, len(tail.Entries))
	}
	for _, e := range tail.Entries {
		if e.Service != broker.EchoServiceName {
			t.Errorf("entry service = %q, want %q", e.Service, broker.EchoServiceName)
		}
	}

	stats, err := f.client.JournalStats()
	if err != nil {
		t.Fatalf("JournalStats: %v", err)
	}
	st, ok := stats.Stats[broker.EchoServiceName]
	if !ok {
		t.Fatalf("JournalStats missing %s: %v", broker.EchoServiceName, stats.Stats)
	}
	if st.Inbound == 0 || st.Outbound == 0 {
		t.Errorf("stats inbound=%d outbound=%d, want both nonzero", st.Inbound, st.Outbound)
	}

	if _, err := f.client.JournalPurge(0); err == nil {
		t.Error("JournalPurge(0) should be rejected")
	}
	purge, err := f.client.JournalPurge(7)
	if err != nil {
		t.Fatalf("JournalPurge: %v", err)
	}
	if purge.Removed != 0 {
		t.Errorf("JournalPurge removed %d fresh entries, want 0", purge.Removed)
	}
}

func TestStop(t *testing.T) {
	f := newFixture(t, testsupport.WithJournalDisabled())
	resp, err := f.client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped {
		t.Error("Stop.Stopped = false, want true")
	}
	deadline := time.Now().Add(time.Second)
	for !f.stopped.Load() {
		if time.Now().After(deadline) {
			t.Fatal("stop callback never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := control.Dial("/nonexistent/msgport-control.sock"); err == nil {
		t.Fatal("expected Dial to a missing socket to fail")
	}
}
