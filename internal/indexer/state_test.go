package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"autoRepay/internal/model"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := &FileStateStore{Path: path}

	if _, ok, err := store.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected empty state, ok=%v err=%v", ok, err)
	}

	state := State{
		LastBlock:  1234,
		Thresholds: []model.UserSetting{{User: userA, Thresholds: thresholds(1, 2, 3)}},
	}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	got, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.LastBlock != 1234 || len(got.Thresholds) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.Thresholds[0].User != userA || got.Thresholds[0].Thresholds.Max.Int64() != 3 {
		t.Fatalf("unexpected thresholds: %+v", got.Thresholds[0])
	}
}

func TestFileStateStoreDirectory(t *testing.T) {
	store := &FileStateStore{Path: t.TempDir()}
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

type memThresholdStore struct {
	blocks   map[string]uint64
	settings []model.UserSetting
}

func (m *memThresholdStore) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	block, ok := m.blocks[name]
	return block, ok, nil
}

func (m *memThresholdStore) SaveState(ctx context.Context, name string, block uint64) error {
	m.blocks[name] = block
	return nil
}

func (m *memThresholdStore) LoadThresholds(ctx context.Context) ([]model.UserSetting, error) {
	return m.settings, nil
}

func (m *memThresholdStore) UpsertThresholds(ctx context.Context, settings []model.UserSetting) error {
	m.settings = settings
	return nil
}

func TestDBStateStore(t *testing.T) {
	mem := &memThresholdStore{blocks: map[string]uint64{}}
	store := &DBStateStore{Store: mem, Name: "health_factor_set"}

	if _, ok, err := store.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected empty state, ok=%v err=%v", ok, err)
	}
	state := State{LastBlock: 99, Thresholds: []model.UserSetting{{User: userB, Thresholds: thresholds(1, 1, 1)}}}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.LastBlock != 99 || len(got.Thresholds) != 1 || got.Thresholds[0].User != userB {
		t.Fatalf("unexpected state: %+v", got)
	}
}
