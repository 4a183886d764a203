package fstree

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/openmined/foldersync/internal/handle"
)

var (
	memoryTrees   = make(map[string]billy.Filesystem)
	memoryTreesMu sync.Mutex
)

// MemoryFS returns the process wide in-memory filesystem registered under name, creating it
// on first use.
//
// memfs reports the current time as every node's modification time, so in-memory trees
// always look freshly written to the engine.
func MemoryFS(name string) billy.Filesystem {
	memoryTreesMu.Lock()
	defer memoryTreesMu.Unlock()

	fsys, ok := memoryTrees[name]
	if !ok {
		fsys = memfs.New()
		if err := fsys.MkdirAll(rootPath, dirPerm); err != nil {
			slog.Debug("fstree memory root", "name", name, "error", err)
		}
		memoryTrees[name] = fsys
	}
	return fsys
}

// MemoryOpener resolves "mem" references to named in-memory trees.
func MemoryOpener(_ context.Context, name string) (handle.Handle, error) {
	if name == "" {
		return nil, errors.New("memory tree name is empty")
	}
	root, err := Open(MemoryFS(name), name)
	if err != nil {
		return nil, err
	}
	return root, nil
}
