package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/utils"
)

const copyBufferSize = 8 * 1024

// Transfer materializes files in a tree by streaming content from another tree.
type Transfer struct {
	logger *slog.Logger
}

func NewTransfer(logger *slog.Logger) *Transfer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transfer{logger: logger}
}

// CreateAtPath copies source to relPath below root, creating the missing directories on the way.
// It returns the number of bytes copied.
func (t *Transfer) CreateAtPath(ctx context.Context, source, root handle.Handle, relPath string) (int64, error) {
	dirs, name := utils.SplitRelPath(relPath)

	current := root
	for _, segment := range dirs {
		next, err := t.ensureDir(ctx, current, segment)
		if err != nil {
			return 0, err
		}
		current = next
	}

	return t.createAndCopy(ctx, source, current, name)
}

// UpdateInPlace replaces the file of target with the content of source. The file is deleted and
// recreated under target.Parent with the same name.
func (t *Transfer) UpdateInPlace(ctx context.Context, source handle.Handle, target *FlattenedEntry) (int64, error) {
	if target == nil || target.Handle == nil {
		return 0, fmt.Errorf("%w: no target", handle.ErrNotAccessible)
	}
	if target.Parent == nil {
		return 0, fmt.Errorf("%w: %s", ErrParentLookupUnsupported, target.RelativePath)
	}

	name := target.Handle.Name()
	if err := target.Handle.Delete(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return t.createAndCopy(ctx, source, target.Parent, name)
}

// ensureDir returns the child directory called name, creating it when absent.
func (t *Transfer) ensureDir(ctx context.Context, parent handle.Handle, name string) (handle.Handle, error) {
	existing, err := handle.FindChild(ctx, parent, name)
	if err != nil {
		t.logger.Debug("sync", "op", "lookup", "name", name, "error", err)
	} else if existing != nil && existing.IsDirectory() {
		return existing, nil
	}

	created, err := parent.CreateChildDirectory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryCreateFailed, name, err)
	}
	if created == nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryCreateFailed, name)
	}
	t.logger.Debug("sync", "op", "mkdir", "name", name)
	return created, nil
}

func (t *Transfer) createAndCopy(ctx context.Context, source, dir handle.Handle, name string) (int64, error) {
	file, err := dir.CreateChildFile(ctx, handle.MimeTypeOf(source), name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFileCreateFailed, name, err)
	}
	if file == nil {
		return 0, fmt.Errorf("%w: %s", ErrFileCreateFailed, name)
	}

	n, err := copyContent(ctx, source, file)
	if err != nil {
		// drop the partial file, it carries a fresh timestamp
		if derr := file.Delete(ctx); derr != nil {
			t.logger.Warn("sync", "op", "cleanup", "name", name, "error", derr)
		}
		return n, err
	}
	return n, nil
}

func copyContent(ctx context.Context, source, target handle.Handle) (int64, error) {
	r, err := source.OpenReadStream(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", ErrStreamOpenFailed, source.Name(), err)
	}
	defer r.Close()

	w, err := target.OpenWriteStream(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: write %s: %w", ErrStreamOpenFailed, target.Name(), err)
	}

	// the wrappers hide ReaderFrom/WriterTo so the copy goes through buf
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(struct{ io.Writer }{w}, struct{ io.Reader }{r}, buf)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", source.Name(), err)
	}
	return n, nil
}
