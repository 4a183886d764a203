package sync

import (
	"context"
	"testing"

	"github.com/openmined/foldersync/internal/handle/handletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesOf(t *testing.T, tree *handletest.Tree) TreeMap {
	t.Helper()
	scan := FlattenTree(context.Background(), tree.Root(), "")
	require.Empty(t, scan.Errors)
	return scan.Entries
}

func TestDiff_OneActionPerPath(t *testing.T) {
	src, dst := newTreePair(0)
	src.AddFile("only-src.txt", "s", 1000)
	src.AddFile("both/newer-src.txt", "s", 10000)
	src.AddFile("both/same.txt", "s", 1000)
	src.AddFile("both/newer-dst.txt", "s", 1000)
	dst.AddFile("only-dst.txt", "d", 1000)
	dst.AddFile("both/newer-src.txt", "d", 1000)
	dst.AddFile("both/same.txt", "d", 2500)
	dst.AddFile("both/newer-dst.txt", "d", 10000)

	actions := Diff(entriesOf(t, src), entriesOf(t, dst))

	assert.Equal(t, []SyncAction{
		{Type: ActionUpdateSource, Path: "both/newer-dst.txt"},
		{Type: ActionUpdateDestination, Path: "both/newer-src.txt"},
		{Type: ActionNoOp, Path: "both/same.txt"},
		{Type: ActionCopyToSource, Path: "only-dst.txt"},
		{Type: ActionCopyToDestination, Path: "only-src.txt"},
	}, actions)
}

func TestDiff_EmptyMaps(t *testing.T) {
	assert.Empty(t, Diff(TreeMap{}, TreeMap{}))
	assert.Empty(t, Diff(nil, nil))
}

func TestDiff_ClassifiesByPresence(t *testing.T) {
	src, dst := newTreePair(0)
	src.AddFile("locked/a.txt", "s", 1000)
	src.AddFile("ok.txt", "s", 1000)
	dst.AddFile("locked/b.txt", "d", 1000)
	dst.Get("locked").Fail(handletest.OpList)

	scan := FlattenTree(context.Background(), dst.Root(), "")
	require.Len(t, scan.Errors, 1)

	assert.Equal(t, []SyncAction{
		{Type: ActionCopyToDestination, Path: "locked/a.txt"},
		{Type: ActionCopyToDestination, Path: "ok.txt"},
	}, Diff(entriesOf(t, src), scan.Entries))
}

func TestCountScanned(t *testing.T) {
	src, dst := newTreePair(0)
	src.AddFile("a", "", 0)
	src.AddFile("b", "", 0)
	src.AddFile("c/d", "", 0)
	dst.AddFile("a", "", 0)

	assert.Equal(t, 3, countScanned(entriesOf(t, src), entriesOf(t, dst)))
	assert.Equal(t, 3, countScanned(entriesOf(t, dst), entriesOf(t, src)))
}
