package sync

import (
	"io"
	"log/slog"
	"time"

	"github.com/openmined/foldersync/internal/handle/handletest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTreePair returns a source and a destination tree whose written files are stamped with now.
func newTreePair(now int64) (*handletest.Tree, *handletest.Tree) {
	src := handletest.NewTree("source")
	dst := handletest.NewTree("dest")
	clock := func() int64 { return now }
	src.SetClock(clock)
	dst.SetClock(clock)
	return src, dst
}

func newTestEngine(opts ...EngineOption) *SyncEngine {
	return NewSyncEngine(append([]EngineOption{WithLogger(discardLogger())}, opts...)...)
}

type transferEvent struct {
	action ActionType
	bytes  int64
}

type recordingObserver struct {
	transfers []transferEvent
	passes    []SyncResult
	modes     []SyncMode
}

func (o *recordingObserver) ObserveTransfer(action ActionType, bytes int64) {
	o.transfers = append(o.transfers, transferEvent{action: action, bytes: bytes})
}

func (o *recordingObserver) ObservePass(mode SyncMode, result SyncResult, _ time.Duration) {
	o.modes = append(o.modes, mode)
	o.passes = append(o.passes, result)
}
