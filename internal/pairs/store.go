package pairs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/openmined/foldersync/internal/utils"
)

const filePerm = 0o600

// Store keeps the ordered list of pairs in a JSON or YAML document. Mutations hold an exclusive
// lock on "<path>.lock" so several processes can share the document.
type Store struct {
	path  string
	codec codec
	flock *flock.Flock
	mu    sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{
		path:  path,
		codec: codecFor(path),
		flock: flock.New(path + ".lock"),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored pairs in document order. A missing document is an empty list.
func (s *Store) Load() ([]SyncPairConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock(true); err != nil {
		return nil, err
	}
	defer s.unlock()

	return s.read()
}

// Get returns the pair whose id is id or starts with id.
func (s *Store) Get(id string) (SyncPairConfig, error) {
	list, err := s.Load()
	if err != nil {
		return SyncPairConfig{}, err
	}
	idx, err := find(list, id)
	if err != nil {
		return SyncPairConfig{}, err
	}
	return list[idx], nil
}

// Add appends pair, assigning a new id when it has none.
func (s *Store) Add(pair SyncPairConfig) (SyncPairConfig, error) {
	if pair.ID == "" {
		pair.ID = uuid.NewString()
	}
	err := s.mutate(func(list []SyncPairConfig) ([]SyncPairConfig, error) {
		for _, existing := range list {
			if existing.ID == pair.ID {
				return nil, fmt.Errorf("sync pair %s already exists", pair.ID)
			}
		}
		return append(list, pair), nil
	})
	if err != nil {
		return SyncPairConfig{}, err
	}
	slog.Info("sync pair added", "id", pair.ID, "source", pair.SourceRef, "dest", pair.DestRef)
	return pair, nil
}

// Update replaces the stored pair with the same id.
func (s *Store) Update(pair SyncPairConfig) error {
	return s.mutate(func(list []SyncPairConfig) ([]SyncPairConfig, error) {
		for i := range list {
			if list[i].ID == pair.ID {
				list[i] = pair
				return list, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, pair.ID)
	})
}

// Remove deletes the pair whose id is id or starts with id and returns it.
func (s *Store) Remove(id string) (SyncPairConfig, error) {
	var removed SyncPairConfig
	err := s.mutate(func(list []SyncPairConfig) ([]SyncPairConfig, error) {
		idx, err := find(list, id)
		if err != nil {
			return nil, err
		}
		removed = list[idx]
		return append(list[:idx], list[idx+1:]...), nil
	})
	if err != nil {
		return SyncPairConfig{}, err
	}
	slog.Info("sync pair removed", "id", removed.ID)
	return removed, nil
}

// Save replaces the whole document.
func (s *Store) Save(list []SyncPairConfig) error {
	return s.mutate(func([]SyncPairConfig) ([]SyncPairConfig, error) {
		return list, nil
	})
}

func (s *Store) mutate(fn func([]SyncPairConfig) ([]SyncPairConfig, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock(false); err != nil {
		return err
	}
	defer s.unlock()

	list, err := s.read()
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.write(list)
}

func (s *Store) read() ([]SyncPairConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []SyncPairConfig{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read pairs %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []SyncPairConfig{}, nil
	}

	list, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode pairs %s: %w", s.path, err)
	}
	if list == nil {
		list = []SyncPairConfig{}
	}
	return list, nil
}

func (s *Store) write(list []SyncPairConfig) error {
	data, err := s.codec.encode(list)
	if err != nil {
		return fmt.Errorf("encode pairs: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, data, filePerm); err != nil {
		return fmt.Errorf("write pairs %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) lock(shared bool) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	var err error
	if shared {
		err = s.flock.RLock()
	} else {
		err = s.flock.Lock()
	}
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.flock.Path(), err)
	}
	return nil
}

func (s *Store) unlock() {
	if err := s.flock.Unlock(); err != nil {
		slog.Warn("failed to unlock pairs file", "path", s.flock.Path(), "error", err)
	}
}

// find returns the index of the pair with the given id, or of the single pair whose id starts
// with it.
func find(list []SyncPairConfig, id string) (int, error) {
	if id == "" {
		return -1, fmt.Errorf("%w: empty id", ErrPairNotFound)
	}
	for i, p := range list {
		if p.ID == id {
			return i, nil
		}
	}
	match := -1
	for i, p := range list {
		if strings.HasPrefix(p.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: %s", ErrAmbiguousPairID, id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrPairNotFound, id)
	}
	return match, nil
}
