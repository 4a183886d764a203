package sync

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/openmined/foldersync/internal/handle"
)

const (
	MsgSourceNotAccessible      = "Source folder not accessible"
	MsgDestinationNotAccessible = "Destination folder not accessible"
)

var (
	ErrListingFailed           = errors.New("listing failed")
	ErrDirectoryCreateFailed   = errors.New("directory create failed")
	ErrFileCreateFailed        = errors.New("file create failed")
	ErrStreamOpenFailed        = errors.New("stream open failed")
	ErrParentLookupUnsupported = errors.New("parent lookup unsupported")
	ErrDeleteFailed            = errors.New("delete failed")
	ErrSyncAlreadyRunning      = errors.New("sync already running")
	ErrUnsupportedSyncMode     = errors.New("unsupported sync mode")
)

// SyncMode selects the direction of a pass.
type SyncMode string

const (
	TwoWay                    SyncMode = "two-way"
	OneWaySourceToDestination SyncMode = "one-way"
)

// ParseSyncMode accepts "two-way", "one-way" and the empty string (two-way).
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TwoWay:
		return TwoWay, nil
	case OneWaySourceToDestination:
		return OneWaySourceToDestination, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSyncMode, s)
	}
}

// ActionType is the decision taken for one relative path.
type ActionType string

const (
	ActionCopyToDestination ActionType = "CopyToDestination"
	ActionCopyToSource      ActionType = "CopyToSource"
	ActionUpdateDestination ActionType = "UpdateDestination"
	ActionUpdateSource      ActionType = "UpdateSource"
	ActionNoOp              ActionType = "NoOp"
)

func (a ActionType) IsCopy() bool {
	return a == ActionCopyToDestination || a == ActionCopyToSource
}

func (a ActionType) IsUpdate() bool {
	return a == ActionUpdateDestination || a == ActionUpdateSource
}

// SyncAction pairs a relative path with the action decided for it.
type SyncAction struct {
	Type ActionType
	Path string
}

func (a SyncAction) String() string {
	return fmt.Sprintf("%s(%s)", a.Type, a.Path)
}

// FlattenedEntry is one file found while flattening a tree. Parent is the directory the file
// was listed from.
type FlattenedEntry struct {
	RelativePath string
	Handle       handle.Handle
	Parent       handle.Handle
}

// TreeMap maps relative paths to the files of one tree.
type TreeMap map[string]*FlattenedEntry

// Paths returns the relative paths of the map, sorted.
func (m TreeMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// SyncResult is the outcome of one pass.
type SyncResult struct {
	Success      bool     `json:"success"`
	FilesScanned int      `json:"filesScanned"`
	FilesCopied  int      `json:"filesCopied"`
	FilesUpdated int      `json:"filesUpdated"`
	Errors       []string `json:"errors"`
}

func newSyncResult(scanned, copied, updated int, errs []string) SyncResult {
	return SyncResult{
		Success:      len(errs) == 0,
		FilesScanned: scanned,
		FilesCopied:  copied,
		FilesUpdated: updated,
		Errors:       slices.Clone(errs),
	}
}

func failedResult(msg string) SyncResult {
	return newSyncResult(0, 0, 0, []string{msg})
}

// FirstError returns the first error message, or "" for a successful pass.
func (r SyncResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}
