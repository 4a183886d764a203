package sync

import (
	"context"
	"fmt"

	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/utils"
)

func (p *syncPass) oneWay(ctx context.Context, source, dest handle.Handle) {
	p.mirror(ctx, source, dest, "")
}

// mirror copies the children of srcDir into dstDir. Nothing is ever deleted from dstDir except
// a file that is about to be replaced by a newer source.
func (p *syncPass) mirror(ctx context.Context, srcDir, dstDir handle.Handle, prefix string) {
	logger := p.se.logger

	children, err := srcDir.ListChildren(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrListingFailed, err)
		logger.Warn("sync", "op", "scan", "path", prefix, "error", err)
		p.fail(fmt.Sprintf("Error scanning %s: %v", srcDir.Name(), err))
		return
	}

	for _, child := range children {
		if child == nil {
			continue
		}
		name := child.Name()
		if name == "" {
			logger.Debug("sync", "op", "scan", "path", prefix, "skipped", handle.ErrInvalidEntry)
			continue
		}

		childPath := utils.JoinRelPath(prefix, name)
		switch {
		case child.IsDirectory():
			if p.se.ignore.ShouldIgnoreDir(childPath) {
				continue
			}
			p.scanned++
			destSub, err := p.se.transfer.ensureDir(ctx, dstDir, name)
			if err != nil {
				logger.Warn("sync", "op", "mkdir", "path", childPath, "error", err)
				p.fail(fmt.Sprintf("Error syncing %s: %v", name, err))
				continue
			}
			p.mirror(ctx, child, destSub, childPath)

		case child.IsFile():
			if p.se.ignore.ShouldIgnore(childPath) {
				continue
			}
			p.scanned++
			if err := p.mirrorFile(ctx, child, dstDir, childPath); err != nil {
				logger.Warn("sync", "op", "mirror", "path", childPath, "error", err)
				p.fail(fmt.Sprintf("Error syncing %s: %v", name, err))
			}

		default:
			logger.Debug("sync", "op", "scan", "path", childPath, "skipped", "not a file or directory")
		}
	}
}

func (p *syncPass) mirrorFile(ctx context.Context, src, dstDir handle.Handle, relPath string) error {
	logger := p.se.logger
	name := src.Name()

	// first listed wins
	if !p.claim(relPath) {
		logger.Debug("sync", "op", "mirror", "path", relPath, "skipped", "duplicate name in listing")
		return nil
	}

	existing, err := handle.FindChild(ctx, dstDir, name)
	if err != nil {
		return err
	}
	if existing != nil && !existing.IsFile() {
		return fmt.Errorf("%w: %s exists in destination and is not a file", ErrFileCreateFailed, name)
	}
	if existing != nil && !sourceIsNewer(src.LastModified(), existing.LastModified()) {
		logger.Debug("sync", "op", ActionNoOp, "path", relPath)
		return nil
	}

	if existing == nil {
		n, err := p.se.transfer.createAndCopy(ctx, src, dstDir, name)
		if err != nil {
			return err
		}
		p.copied++
		p.se.observer.ObserveTransfer(ActionCopyToDestination, n)
		logger.Debug("sync", "op", ActionCopyToDestination, "path", relPath, "bytes", n)
		return nil
	}

	target := &FlattenedEntry{RelativePath: relPath, Handle: existing, Parent: dstDir}
	n, err := p.se.transfer.UpdateInPlace(ctx, src, target)
	if err != nil {
		return err
	}
	p.updated++
	p.se.observer.ObserveTransfer(ActionUpdateDestination, n)
	logger.Debug("sync", "op", ActionUpdateDestination, "path", relPath, "bytes", n)
	return nil
}
