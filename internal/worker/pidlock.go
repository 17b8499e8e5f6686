// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package worker runs the singleton queue worker: the only process that
// talks to the YouTube API. Singleton-ness is enforced with a PID lock file
// so a second worker cannot double-spend quota.
package worker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/renameio/v2"

	"github.com/phonographus/phonographus/internal/logging"
)

// PIDLock is an exclusive lock backed by a PID file. A lock is considered
// held only while the recorded process is alive; files left behind by a
// crashed worker are replaced.
type PIDLock struct {
	path string
}

// NewPIDLock returns a lock at path.
func NewPIDLock(path string) *PIDLock {
	return &PIDLock{path: path}
}

// Acquire takes the lock. Returns an error when another live process holds
// it; a stale file from a dead process is replaced.
func (l *PIDLock) Acquire() error {
	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr == nil && pid > 0 && pid != os.Getpid() && processAlive(pid) {
			return fmt.Errorf("another worker is already running (pid %d, lock %s)", pid, l.path)
		}
		logging.Warn().Int("stale_pid", pid).Str("path", l.path).Msg("Replacing stale PID file")
	case errors.Is(err, fs.ErrNotExist):
		// First worker on this path.
	default:
		return fmt.Errorf("failed to read PID file %s: %w", l.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := renameio.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", l.path, err)
	}
	return nil
}

// Release removes the PID file if this process owns it. A file now owned by
// another process is left alone.
func (l *PIDLock) Release() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil || pid != os.Getpid() {
		return
	}
	if err := os.Remove(l.path); err != nil {
		logging.Error().Err(err).Str("path", l.path).Msg("Failed to remove PID file")
	}
}

// Holder reports the PID recorded at path and whether that process is
// alive. Used by health checks in the serving process, which does not hold
// the lock itself.
func Holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, processAlive(pid)
}

// processAlive probes pid with signal 0. EPERM still means the process
// exists; it just belongs to someone else.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
