package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "run", "slack-relay.pid")
	l, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := strings.TrimSpace(string(b)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file PID = %q, want %d", got, os.Getpid())
	}
}

func TestAcquirePIDLockRejectsSecondHolder(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "slack-relay.pid")
	first, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}

	// flock is per open file description, so a second open in the same
	// process still conflicts.
	if _, err := AcquirePIDLock(lockPath); !errors.Is(err, ErrLocked) {
		t.Fatalf("second AcquirePIDLock error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock after release: %v", err)
	}
	_ = again.Release()
}

func TestAcquirePIDLockEmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := AcquirePIDLock(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestReleaseNil(t *testing.T) {
	t.Parallel()
	var l *PIDLock
	if err := l.Release(); err != nil {
		t.Fatalf("Release on nil lock: %v", err)
	}
}
