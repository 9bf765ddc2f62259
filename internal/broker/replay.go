package broker

import (
	"context"
	"sync"

	"metawatch/internal/errors"
	"metawatch/internal/models"
)

// ScriptedTerminal replays a fixed sequence of snapshots. It stands in for a
// live terminal in tests and dry runs: each Snapshot call returns the next
// scripted state, and the last state repeats once the script is exhausted.
type ScriptedTerminal struct {
	mu        sync.Mutex
	snapshots []models.Snapshot
	deals     map[string]models.Deal
	idx       int
	connected bool
}

// NewScriptedTerminal creates a scripted terminal with the given snapshots.
func NewScriptedTerminal(snapshots ...models.Snapshot) *ScriptedTerminal {
	return &ScriptedTerminal{
		snapshots: snapshots,
		deals:     make(map[string]models.Deal),
	}
}

// Append adds a snapshot to the end of the script.
func (s *ScriptedTerminal) Append(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

// SetClosingDeal registers the exit deal returned for a position id.
func (s *ScriptedTerminal) SetClosingDeal(positionID string, deal models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[positionID] = deal
}

// Connect marks the terminal as connected.
func (s *ScriptedTerminal) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Close marks the terminal as disconnected.
func (s *ScriptedTerminal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// Snapshot returns the next scripted snapshot.
func (s *ScriptedTerminal) Snapshot(ctx context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return models.NewSnapshot(), errors.ErrNotSynchronized
	}
	if len(s.snapshots) == 0 {
		return models.NewSnapshot(), nil
	}
	snap := s.snapshots[s.idx]
	if s.idx < len(s.snapshots)-1 {
		s.idx++
	}
	return snap, nil
}

// ClosingDeal returns the registered exit deal for the position.
func (s *ScriptedTerminal) ClosingDeal(ctx context.Context, positionID string) (models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deal, ok := s.deals[positionID]; ok {
		return deal, nil
	}
	return models.Deal{}, errors.ErrNoClosingDeal
}
