package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/foldersync/internal/handle"
)

// Observer receives transfer and pass events.
type Observer interface {
	ObserveTransfer(action ActionType, bytes int64)
	ObservePass(mode SyncMode, result SyncResult, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveTransfer(ActionType, int64) {}

func (nopObserver) ObservePass(SyncMode, SyncResult, time.Duration) {}

// SyncEngine runs synchronization passes between two trees. It keeps no state between passes
// and may be shared by concurrent passes over disjoint trees.
type SyncEngine struct {
	ignore   *SyncIgnoreList
	transfer *Transfer
	observer Observer
	logger   *slog.Logger
}

// EngineOption configures a SyncEngine.
type EngineOption func(*SyncEngine)

// WithIgnoreList excludes matching relative paths from every pass.
func WithIgnoreList(ignore *SyncIgnoreList) EngineOption {
	return func(se *SyncEngine) {
		se.ignore = ignore
	}
}

func WithObserver(observer Observer) EngineOption {
	return func(se *SyncEngine) {
		if observer != nil {
			se.observer = observer
		}
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(se *SyncEngine) {
		if logger != nil {
			se.logger = logger
		}
	}
}

func NewSyncEngine(opts ...EngineOption) *SyncEngine {
	se := &SyncEngine{
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(se)
	}
	se.transfer = NewTransfer(se.logger)
	return se
}

// Synchronize runs one pass between the source and destination directories and returns its
// outcome. Only an unusable root aborts the pass; every other failure is reported in
// SyncResult.Errors.
func (se *SyncEngine) Synchronize(ctx context.Context, source, dest handle.Handle, mode SyncMode) SyncResult {
	if mode == "" {
		mode = TwoWay
	}
	tStart := time.Now()
	result := se.synchronize(ctx, source, dest, mode)
	se.observer.ObservePass(mode, result, time.Since(tStart))
	return result
}

func (se *SyncEngine) synchronize(ctx context.Context, source, dest handle.Handle, mode SyncMode) SyncResult {
	if !handle.IsAccessibleDir(source) {
		se.logger.Warn("sync", "error", MsgSourceNotAccessible)
		return failedResult(MsgSourceNotAccessible)
	}
	if !handle.IsAccessibleDir(dest) {
		se.logger.Warn("sync", "error", MsgDestinationNotAccessible)
		return failedResult(MsgDestinationNotAccessible)
	}

	tStart := time.Now()
	pass := se.newPass()
	switch mode {
	case TwoWay:
		pass.twoWay(ctx, source, dest)
	case OneWaySourceToDestination:
		pass.oneWay(ctx, source, dest)
	default:
		return failedResult(fmt.Sprintf("%v: %q", ErrUnsupportedSyncMode, mode))
	}

	result := pass.result()
	se.logger.Info("sync pass",
		"mode", mode,
		"source", source.Name(),
		"dest", dest.Name(),
		"scanned", result.FilesScanned,
		"copied", result.FilesCopied,
		"updated", result.FilesUpdated,
		"errors", len(result.Errors),
		"tsTotal", time.Since(tStart),
	)
	return result
}

// syncPass holds the state of one Synchronize call.
type syncPass struct {
	se         *SyncEngine
	enumerator *treeEnumerator
	scanned    int
	copied     int
	updated    int
	errors     []string
	touched    mapset.Set[string]
}

func (se *SyncEngine) newPass() *syncPass {
	return &syncPass{
		se:         se,
		enumerator: &treeEnumerator{ignore: se.ignore, logger: se.logger},
		touched:    mapset.NewThreadUnsafeSet[string](),
	}
}

func (p *syncPass) result() SyncResult {
	return newSyncResult(p.scanned, p.copied, p.updated, p.errors)
}

func (p *syncPass) fail(msg string) {
	p.errors = append(p.errors, msg)
}

// claim records that the destination path relPath is written in this pass. It returns false
// when the path was already claimed, which happens when a listing returns the same name twice.
func (p *syncPass) claim(relPath string) bool {
	return p.touched.Add(relPath)
}

func (p *syncPass) twoWay(ctx context.Context, source, dest handle.Handle) {
	srcScan := p.enumerator.flatten(ctx, source, "")
	dstScan := p.enumerator.flatten(ctx, dest, "")
	p.errors = append(p.errors, srcScan.Errors...)
	p.errors = append(p.errors, dstScan.Errors...)

	p.scanned = countScanned(srcScan.Entries, dstScan.Entries)
	p.se.logger.Debug("sync scan", "source", len(srcScan.Entries), "dest", len(dstScan.Entries))

	for _, action := range Diff(srcScan.Entries, dstScan.Entries) {
		p.execute(ctx, action, source, dest, srcScan.Entries, dstScan.Entries)
	}
}

func (p *syncPass) execute(ctx context.Context, action SyncAction, sourceRoot, destRoot handle.Handle, srcMap, dstMap TreeMap) {
	logger := p.se.logger
	if action.Type == ActionNoOp {
		logger.Debug("sync", "op", action.Type, "path", action.Path)
		return
	}

	var (
		n   int64
		err error
	)
	transfer := p.se.transfer
	switch action.Type {
	case ActionCopyToDestination:
		n, err = transfer.CreateAtPath(ctx, srcMap[action.Path].Handle, destRoot, action.Path)
	case ActionCopyToSource:
		n, err = transfer.CreateAtPath(ctx, dstMap[action.Path].Handle, sourceRoot, action.Path)
	case ActionUpdateDestination:
		n, err = transfer.UpdateInPlace(ctx, srcMap[action.Path].Handle, dstMap[action.Path])
	case ActionUpdateSource:
		n, err = transfer.UpdateInPlace(ctx, dstMap[action.Path].Handle, srcMap[action.Path])
	}

	if err != nil {
		verb := "copy"
		if action.Type.IsUpdate() {
			verb = "update"
		}
		logger.Warn("sync", "op", action.Type, "path", action.Path, "error", err)
		p.fail(fmt.Sprintf("Failed to %s %s: %v", verb, action.Path, err))
		return
	}

	if action.Type.IsCopy() {
		p.copied++
	} else {
		p.updated++
	}
	p.se.observer.ObserveTransfer(action.Type, n)
	logger.Debug("sync", "op", action.Type, "path", action.Path, "bytes", n)
}
