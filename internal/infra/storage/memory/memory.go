package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

type MemoryStorage struct {
	triggers map[domain.SourceID]*domain.Trigger
	windows  map[domain.SourceID][]*domain.WindowRecord
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		triggers: make(map[domain.SourceID]*domain.Trigger),
		windows:  make(map[domain.SourceID][]*domain.WindowRecord),
	}
}

// -----------------------------------------------------------------------------
// Trigger Repository
// -----------------------------------------------------------------------------

type TriggerRepo struct {
	store *MemoryStorage
}

func NewTriggerRepo(store *MemoryStorage) *TriggerRepo {
	return &TriggerRepo{store: store}
}

func (r *TriggerRepo) Get(ctx context.Context, sourceID domain.SourceID) (*domain.Trigger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.triggers[sourceID]
	if !ok {
		return nil, storage.ErrTriggerNotFound
	}
	c := *t
	return &c, nil
}

func (r *TriggerRepo) List(ctx context.Context) ([]*domain.Trigger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Trigger, 0, len(r.store.triggers))
	for _, t := range r.store.triggers {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (r *TriggerRepo) Create(ctx context.Context, trigger *domain.Trigger) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.triggers[trigger.SourceID]; ok {
		return storage.ErrTriggerExists
	}
	c := *trigger
	r.store.triggers[trigger.SourceID] = &c
	return nil
}

func (r *TriggerRepo) Update(ctx context.Context, trigger *domain.Trigger, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.triggers[trigger.SourceID]
	if !ok {
		return storage.ErrTriggerNotFound
	}
	if current.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	c := *trigger
	r.store.triggers[trigger.SourceID] = &c
	return nil
}

func (r *TriggerRepo) ResetState(ctx context.Context, sourceID domain.SourceID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.triggers[sourceID]
	if !ok {
		return storage.ErrTriggerNotFound
	}
	c := *t
	c.LastFullScan = nil
	c.ForwardCursor = nil
	c.BackwardCursor = nil
	c.LastScanType = domain.ScanTypeNone
	c.LastScanTypeCount = 0
	c.Version++
	r.store.triggers[sourceID] = &c
	return nil
}

func (r *TriggerRepo) Delete(ctx context.Context, sourceID domain.SourceID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.triggers[sourceID]; !ok {
		return storage.ErrTriggerNotFound
	}
	delete(r.store.triggers, sourceID)
	return nil
}

// -----------------------------------------------------------------------------
// Window Repository
// -----------------------------------------------------------------------------

type WindowRepo struct {
	store *MemoryStorage
}

func NewWindowRepo(store *MemoryStorage) *WindowRepo {
	return &WindowRepo{store: store}
}

func (r *WindowRepo) Record(ctx context.Context, record *domain.WindowRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *record
	r.store.windows[record.SourceID] = append(r.store.windows[record.SourceID], &c)
	return nil
}

func (r *WindowRepo) ListRecent(
	ctx context.Context,
	sourceID domain.SourceID,
	limit int,
) ([]*domain.WindowRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := r.store.windows[sourceID]
	out := make([]*domain.WindowRecord, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		c := *records[i]
		out = append(out, &c)
	}
	return out, nil
}

func (r *WindowRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, records := range r.store.windows {
		kept := records[:0]
		for _, rec := range records {
			if rec.DispatchedAt.Unix() < before {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		r.store.windows[id] = kept
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Committer
// -----------------------------------------------------------------------------

// CommitWindow updates the trigger and records the window under one lock.
func (s *MemoryStorage) CommitWindow(
	ctx context.Context,
	trigger *domain.Trigger,
	expectedVersion int64,
	record *domain.WindowRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.triggers[trigger.SourceID]
	if !ok {
		return storage.ErrTriggerNotFound
	}
	if current.Version != expectedVersion {
		return storage.ErrVersionConflict
	}

	t := *trigger
	s.triggers[trigger.SourceID] = &t
	if record != nil {
		w := *record
		s.windows[record.SourceID] = append(s.windows[record.SourceID], &w)
	}
	return nil
}
