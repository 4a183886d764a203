package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/utils"
)

// TreeScan is the flattened view of one tree.
type TreeScan struct {
	Entries TreeMap

	// Errors holds one "Error scanning" message per failed listing.
	Errors []string
}

type treeEnumerator struct {
	ignore *SyncIgnoreList
	logger *slog.Logger
}

// FlattenTree walks dir recursively and maps every file below it to its relative path. Listing
// failures are recorded and leave that subtree empty; siblings are still visited.
func FlattenTree(ctx context.Context, dir handle.Handle, prefix string) *TreeScan {
	e := &treeEnumerator{logger: slog.Default()}
	return e.flatten(ctx, dir, prefix)
}

func (e *treeEnumerator) flatten(ctx context.Context, dir handle.Handle, prefix string) *TreeScan {
	scan := &TreeScan{Entries: make(TreeMap)}
	e.walk(ctx, dir, prefix, scan)
	return scan
}

func (e *treeEnumerator) walk(ctx context.Context, dir handle.Handle, prefix string, scan *TreeScan) {
	children, err := dir.ListChildren(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrListingFailed, err)
		label := prefix
		if label == "" {
			label = dir.Name()
		}
		e.logger.Warn("sync", "op", "scan", "path", label, "error", err)
		scan.Errors = append(scan.Errors, fmt.Sprintf("Error scanning %s: %v", label, err))
		return
	}

	for _, child := range children {
		if child == nil {
			continue
		}
		name := child.Name()
		if name == "" {
			e.logger.Debug("sync", "op", "scan", "path", prefix, "skipped", handle.ErrInvalidEntry)
			continue
		}

		childPath := utils.JoinRelPath(prefix, name)
		switch {
		case child.IsDirectory():
			if e.ignore.ShouldIgnoreDir(childPath) {
				e.logger.Debug("sync", "op", "scan", "path", childPath, "ignored", true)
				continue
			}
			e.walk(ctx, child, childPath, scan)
		case child.IsFile():
			if e.ignore.ShouldIgnore(childPath) {
				e.logger.Debug("sync", "op", "scan", "path", childPath, "ignored", true)
				continue
			}
			if _, dup := scan.Entries[childPath]; dup {
				e.logger.Debug("sync", "op", "scan", "path", childPath, "skipped", "duplicate name in listing")
				continue
			}
			scan.Entries[childPath] = &FlattenedEntry{
				RelativePath: childPath,
				Handle:       child,
				Parent:       dir,
			}
		default:
			e.logger.Debug("sync", "op", "scan", "path", childPath, "skipped", "not a file or directory")
		}
	}
}
