package daemonctl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"msgport/internal/testsupport"
)

func TestLaunchRejectsEmptyExecutable(t *testing.T) {
	if err := Launch("", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
	if err := Launch("   ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for blank executable path")
	}
}

func TestProcessInfoMissingSocket(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "control.sock")
	alive, pid, err := ProcessInfo(missing)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if alive || pid != 0 {
		t.Errorf("ProcessInfo = (%v, %d), want (false, 0)", alive, pid)
	}
}

func TestWaitForShutdownMissingSocket(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "control.sock")
	if err := WaitForShutdown(missing, time.Second); err != nil {
		t.Fatalf("WaitForShutdown on missing socket: %v", err)
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "control.sock")
	start := time.Now()
	if _, err := WaitForClient(missing, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("WaitForClient gave up after %v, want at least the timeout", elapsed)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJournalDisabled())
	_, err := StopAndTerminate(cfg, time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("StopAndTerminate = %v, want ErrDaemonNotRunning", err)
	}
}

func TestForceKillProcess(t *testing.T) {
	t.Run("refuses current process", func(t *testing.T) {
		dir := t.TempDir()
		pidPath := filepath.Join(dir, "msgportd.pid")
		if err := os.WriteFile(pidPath, []byte("garbage"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil {
			t.Fatal("expected refusal to kill current process")
		}
	})

	t.Run("fails without pid", func(t *testing.T) {
		dir := t.TempDir()
		pidPath := filepath.Join(dir, "msgportd.pid")
		if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
			t.Fatal("expected error when no pid is available")
		}
	})
}
