// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package worker

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "worker.pid")
}

func TestPIDLockAcquireWritesOwnPID(t *testing.T) {
	path := lockPath(t)
	l := NewPIDLock(path)

	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid != os.Getpid() {
		t.Errorf("PID file holds %q, want own pid %d", data, os.Getpid())
	}
}

func TestPIDLockRejectsLiveHolder(t *testing.T) {
	path := lockPath(t)
	// The parent test runner is alive for the duration of this test.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644); err != nil {
		t.Fatalf("seed PID file: %v", err)
	}

	if err := NewPIDLock(path).Acquire(); err == nil {
		t.Error("Acquire succeeded while a live process holds the lock")
	}
}

func TestPIDLockReplacesStaleFile(t *testing.T) {
	path := lockPath(t)
	// PID max on Linux defaults to well below this; the process cannot exist.
	if err := os.WriteFile(path, []byte("99999999"), 0o644); err != nil {
		t.Fatalf("seed PID file: %v", err)
	}

	l := NewPIDLock(path)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire did not replace stale PID file: %v", err)
	}
	defer l.Release()

	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file holds %q after stale replace", data)
	}
}

func TestPIDLockReplacesGarbageFile(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("seed PID file: %v", err)
	}

	l := NewPIDLock(path)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire did not replace garbage PID file: %v", err)
	}
	l.Release()
}

func TestPIDLockReleaseRemovesOwnFile(t *testing.T) {
	path := lockPath(t)
	l := NewPIDLock(path)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	l.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PID file survives Release")
	}
}

func TestPIDLockReleaseLeavesForeignFile(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644); err != nil {
		t.Fatalf("seed PID file: %v", err)
	}

	NewPIDLock(path).Release()
	if _, err := os.Stat(path); err != nil {
		t.Error("Release removed a PID file owned by another process")
	}
}
