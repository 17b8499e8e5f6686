// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package quota

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/phonographus/phonographus/internal/models"
)

// StateFile persists the quota block flag as a JSON file outside the
// database. Reads see either the old or the new content, never a torn
// write: updates go through an atomic rename.
type StateFile struct {
	path string
}

// NewStateFile returns a state file handle for path. The file is created
// lazily on the first write.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the persisted state. A missing file means "not blocked".
func (s *StateFile) Load() (*models.QuotaState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &models.QuotaState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quota state %s: %w", s.path, err)
	}

	var state models.QuotaState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse quota state %s: %w", s.path, err)
	}
	return &state, nil
}

// Save rewrites the whole state file atomically.
func (s *StateFile) Save(state *models.QuotaState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal quota state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write quota state %s: %w", s.path, err)
	}
	return nil
}

// Block marks quota as exhausted with a reason and timestamps the event.
func (s *StateFile) Block(reason, detail string) error {
	now := time.Now().UTC()
	return s.Save(&models.QuotaState{
		Blocked:   true,
		Reason:    reason,
		Detail:    detail,
		BlockedAt: &now,
	})
}

// Unblock clears the block flag.
func (s *StateFile) Unblock() error {
	return s.Save(&models.QuotaState{})
}
