package sync

import (
	"context"
	"testing"

	"github.com/openmined/foldersync/internal/handle/handletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenTree_MapsFilesToRelativePaths(t *testing.T) {
	tree := handletest.NewTree("root")
	tree.AddFile("a.txt", "A", 1000)
	tree.AddFile("dir/b.txt", "B", 2000)
	tree.AddFile("dir/sub/c.txt", "C", 3000)
	tree.AddDir("empty")

	scan := FlattenTree(context.Background(), tree.Root(), "")

	assert.Empty(t, scan.Errors)
	assert.Equal(t, []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"}, scan.Entries.Paths())

	entry := scan.Entries["dir/sub/c.txt"]
	require.NotNil(t, entry)
	assert.Equal(t, "dir/sub/c.txt", entry.RelativePath)
	assert.Equal(t, "c.txt", entry.Handle.Name())
	assert.Same(t, tree.Get("dir/sub"), entry.Parent)
	assert.Same(t, tree.Root(), scan.Entries["a.txt"].Parent)
}

func TestFlattenTree_Prefix(t *testing.T) {
	tree := handletest.NewTree("root")
	tree.AddFile("x.txt", "X", 0)

	scan := FlattenTree(context.Background(), tree.Root(), "mounted/here")
	assert.Equal(t, []string{"mounted/here/x.txt"}, scan.Entries.Paths())
}

func TestFlattenTree_SkipsUnnamedAndUnclassifiable(t *testing.T) {
	tree := handletest.NewTree("root")
	tree.AddFile("keep.txt", "K", 0)
	tree.AddUnnamed("")
	tree.AddUnnamed("dir")
	tree.AddOther("socket")

	scan := FlattenTree(context.Background(), tree.Root(), "")

	assert.Empty(t, scan.Errors, "invalid entries are not errors")
	assert.Equal(t, []string{"keep.txt"}, scan.Entries.Paths())
}

func TestFlattenTree_ListingFailureKeepsSiblings(t *testing.T) {
	tree := handletest.NewTree("root")
	tree.AddFile("a/one.txt", "1", 0)
	tree.AddFile("b/two.txt", "2", 0)
	tree.AddFile("c/three.txt", "3", 0)
	tree.Get("b").Fail(handletest.OpList)

	scan := FlattenTree(context.Background(), tree.Root(), "")

	assert.Equal(t, []string{"a/one.txt", "c/three.txt"}, scan.Entries.Paths())
	require.Len(t, scan.Errors, 1)
	assert.Contains(t, scan.Errors[0], "Error scanning b: ")
	assert.Contains(t, scan.Errors[0], ErrListingFailed.Error())
}

func TestFlattenTree_RootListingFailure(t *testing.T) {
	tree := handletest.NewTree("photos")
	tree.AddFile("a.txt", "A", 0)
	tree.Root().Fail(handletest.OpList)

	scan := FlattenTree(context.Background(), tree.Root(), "")

	assert.Empty(t, scan.Entries)
	require.Len(t, scan.Errors, 1)
	assert.Contains(t, scan.Errors[0], "Error scanning photos: ")
}

func TestFlattenTree_IgnoreList(t *testing.T) {
	tree := handletest.NewTree("root")
	tree.AddFile("keep.txt", "", 0)
	tree.AddFile("debug.log", "", 0)
	tree.AddFile(".DS_Store", "", 0)
	tree.AddFile("build/out.bin", "", 0)
	tree.AddFile("src/build.go", "", 0)
	tree.Get("build").Fail(handletest.OpList)

	e := &treeEnumerator{ignore: NewSyncIgnoreList(append(DefaultIgnorePatterns(), "*.log", "build/")...), logger: discardLogger()}
	scan := e.flatten(context.Background(), tree.Root(), "")

	assert.Empty(t, scan.Errors, "ignored directories are never listed")
	assert.Equal(t, []string{"keep.txt", "src/build.go"}, scan.Entries.Paths())
}
