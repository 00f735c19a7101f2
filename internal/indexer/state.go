package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autoRepay/internal/model"
)

// State is what the scanner needs to resume after a restart.
type State struct {
	LastBlock  uint64              `json:"last_block"`
	Thresholds []model.UserSetting `json:"thresholds"`
	UpdatedAt  string              `json:"updated_at,omitempty"`
}

// StateStore persists scanner progress and the threshold book.
type StateStore interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Path == "" {
		return State{}, false, nil
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return State{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return State{}, false, fmt.Errorf("read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, fmt.Errorf("parse state: %w", err)
	}
	return state, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// ThresholdStore is the database backing of DBStateStore.
type ThresholdStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
	LoadThresholds(ctx context.Context) ([]model.UserSetting, error)
	UpsertThresholds(ctx context.Context, settings []model.UserSetting) error
}

// DBStateStore stores the last block in indexer_state and the book in
// health_factor_settings.
type DBStateStore struct {
	Store ThresholdStore
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Store == nil {
		return State{}, false, nil
	}
	block, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return State{}, false, err
	}
	settings, err := s.Store.LoadThresholds(ctx)
	if err != nil {
		return State{}, false, fmt.Errorf("load thresholds: %w", err)
	}
	return State{LastBlock: block, Thresholds: settings}, true, nil
}

// Save writes the thresholds first, then the block.
func (s *DBStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.UpsertThresholds(ctx, state.Thresholds); err != nil {
		return fmt.Errorf("upsert thresholds: %w", err)
	}
	return s.Store.SaveState(ctx, s.Name, state.LastBlock)
}
