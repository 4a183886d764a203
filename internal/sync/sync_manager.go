package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/pairs"
	"golang.org/x/sync/singleflight"
)

// PairRun is the outcome of synchronizing one configured pair.
type PairRun struct {
	Pair   pairs.SyncPairConfig
	Result SyncResult
	Err    error
}

// SyncManager resolves configured pairs and runs the engine on them, one pass at a time per tree.
type SyncManager struct {
	resolver *handle.Resolver
	store    *pairs.Store
	engine   *SyncEngine
	journal  *SyncJournal
	logger   *slog.Logger

	group  singleflight.Group
	active map[string]struct{}
	mu     sync.Mutex
}

type ManagerOption func(*SyncManager)

// WithJournal records every pass in journal.
func WithJournal(journal *SyncJournal) ManagerOption {
	return func(m *SyncManager) {
		m.journal = journal
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *SyncManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(resolver *handle.Resolver, store *pairs.Store, engine *SyncEngine, opts ...ManagerOption) *SyncManager {
	m := &SyncManager{
		resolver: resolver,
		store:    store,
		engine:   engine,
		logger:   slog.Default(),
		active:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunPair synchronizes the stored pair whose id is (or starts with) pairID.
func (m *SyncManager) RunPair(ctx context.Context, pairID string, mode SyncMode) (SyncResult, error) {
	pair, err := m.store.Get(pairID)
	if err != nil {
		return SyncResult{}, err
	}
	return m.Run(ctx, pair, mode)
}

// Run synchronizes pair. Identical concurrent requests share one pass; a request touching a tree
// that another pass is working on fails with ErrSyncAlreadyRunning.
func (m *SyncManager) Run(ctx context.Context, pair pairs.SyncPairConfig, mode SyncMode) (SyncResult, error) {
	if err := pair.Validate(); err != nil {
		return SyncResult{}, err
	}

	key := pair.SourceRef + "\x00" + pair.DestRef + "\x00" + string(mode)
	v, err, shared := m.group.Do(key, func() (any, error) {
		return m.run(ctx, pair, mode)
	})
	if shared {
		m.logger.Debug("sync manager", "pair", pair.ID, "shared", true)
	}
	if err != nil {
		return SyncResult{}, err
	}
	return v.(SyncResult), nil
}

// RunAll synchronizes every stored pair, one after another. Incomplete pairs are reported and
// skipped.
func (m *SyncManager) RunAll(ctx context.Context, mode SyncMode) ([]PairRun, error) {
	list, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}

	runs := make([]PairRun, 0, len(list))
	for _, pair := range list {
		result, err := m.Run(ctx, pair, mode)
		if err != nil {
			m.logger.Warn("sync manager", "pair", pair.ID, "error", err)
		}
		runs = append(runs, PairRun{Pair: pair, Result: result, Err: err})
	}
	return runs, nil
}

// History returns the most recent recorded passes of a pair, or of every pair when pairID is "".
func (m *SyncManager) History(pairID string, limit int) ([]*SyncRun, error) {
	if m.journal == nil {
		return nil, ErrJournalClosed
	}
	if pairID != "" {
		pair, err := m.store.Get(pairID)
		if err != nil {
			return nil, err
		}
		pairID = pair.ID
	}
	return m.journal.Recent(pairID, limit)
}

func (m *SyncManager) run(ctx context.Context, pair pairs.SyncPairConfig, mode SyncMode) (SyncResult, error) {
	release, err := m.acquire(pair.SourceRef, pair.DestRef)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	startedAt := time.Now()
	source := m.resolve(ctx, "source", pair.SourceRef)
	dest := m.resolve(ctx, "dest", pair.DestRef)

	result := m.engine.Synchronize(ctx, source, dest, mode)
	m.record(pair, mode, startedAt, result)
	return result, nil
}

func (m *SyncManager) resolve(ctx context.Context, side, ref string) handle.Handle {
	h, err := m.resolver.Resolve(ctx, ref)
	if err != nil {
		m.logger.Warn("sync manager", "side", side, "ref", ref, "error", err)
		return nil
	}
	return h
}

func (m *SyncManager) record(pair pairs.SyncPairConfig, mode SyncMode, startedAt time.Time, result SyncResult) {
	if m.journal == nil {
		return
	}
	if mode == "" {
		mode = TwoWay
	}
	run := &SyncRun{
		PairID:    pair.ID,
		Mode:      mode,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Result:    result,
	}
	if _, err := m.journal.Record(run); err != nil {
		m.logger.Error("sync manager", "pair", pair.ID, "error", err)
	}
}

// acquire marks both references busy. It fails if either one already is.
func (m *SyncManager) acquire(refs ...string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		key := refKey(ref)
		if _, busy := m.active[key]; busy {
			return nil, fmt.Errorf("%w: %s", ErrSyncAlreadyRunning, ref)
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		m.active[key] = struct{}{}
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, key := range keys {
			delete(m.active, key)
		}
	}, nil
}

func refKey(ref string) string {
	scheme, rest := handle.SplitReference(ref)
	return scheme + "://" + rest
}
