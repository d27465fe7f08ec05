package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"msgport/internal/broker"
	"msgport/internal/config"
	"msgport/internal/control"
	"msgport/internal/journal"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	runtimeDir := filepath.Join(base, "run")
	logDir := filepath.Join(base, "logs")
	configPath := filepath.Join(base, "config.toml")

	content := fmt.Sprintf(`[paths]
runtime_dir = %q
log_dir = %q

[journal]
enabled = true
retention_days = 7
`, runtimeDir, logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if !exists {
		t.Fatal("config file was not picked up")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	b, err := broker.New(cfg, store, nil)
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

	srv, err := control.NewServer(context.Background(), cfg.ControlSocketPath(), b, func() {}, nil)
	if err != nil {
		t.Fatalf("control.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPingCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !strings.Contains(out, "pong") {
		t.Errorf("ping output %q missing pong", out)
	}
}

func TestServicesCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "services")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if !strings.Contains(out, broker.EchoServiceName) || !strings.Contains(out, broker.RegistryServiceName) {
		t.Errorf("services output missing builtins:\n%s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Running") {
		t.Errorf("status output missing Running:\n%s", out)
	}
	if !strings.Contains(out, env.cfg.SocketPath()) {
		t.Errorf("status output missing socket path:\n%s", out)
	}
}

func TestSendCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "send", broker.EchoServiceName, `{"greeting":"hi"}`, "--wait")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "Sent to "+broker.EchoServiceName) {
		t.Errorf("send output missing confirmation:\n%s", out)
	}
	if !strings.Contains(out, `"greeting": "hi"`) {
		t.Errorf("send output missing echoed reply:\n%s", out)
	}
}

func TestSendRejectsBadJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "send", broker.EchoServiceName, "{not json"); err == nil {
		t.Fatal("expected error for malformed message JSON")
	}
}

func TestJournalTailCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env, "send", broker.EchoServiceName, `{"k":"v"}`, "--wait"); err != nil {
		t.Fatalf("send: %v", err)
	}
	out, err := runCLI(t, env, "journal", "tail", "--service", broker.EchoServiceName)
	if err != nil {
		t.Fatalf("journal tail: %v", err)
	}
	if !strings.Contains(out, broker.EchoServiceName) {
		t.Errorf("journal tail output missing traffic:\n%s", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	// A second init without --overwrite must refuse.
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}
