package fstree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/openmined/foldersync/internal/handle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func childNames(t *testing.T, h handle.Handle) []string {
	t.Helper()
	children, err := h.ListChildren(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name())
	}
	return names
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "A", time.UnixMilli(1_000_000))
	writeFile(t, dir, "sub/b.bin", "B", time.UnixMilli(2_000_000))

	root, err := OpenDir(dir)
	require.NoError(t, err)
	assert.True(t, root.IsDirectory())
	assert.False(t, root.IsFile())
	assert.Equal(t, filepath.Base(dir), root.Name())
	assert.ElementsMatch(t, []string{"a.txt", "sub"}, childNames(t, root))
}

func TestOpenDirMissing(t *testing.T) {
	_, err := OpenDir(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, handle.ErrNotDirectory)
}

func TestNodeAttributes(t *testing.T) {
	dir := t.TempDir()
	mtime := time.UnixMilli(1_700_000_000_123)
	writeFile(t, dir, "notes.md", "# hi", mtime)

	root, err := OpenDir(dir)
	require.NoError(t, err)

	child, err := root.FindChild(context.Background(), "notes.md")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.True(t, child.IsFile())
	assert.Equal(t, mtime.UnixMilli(), child.LastModified())
	assert.Equal(t, "text/plain; charset=utf-8", child.MimeType())

	missing, err := root.FindChild(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMimeTypeSniffed(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image"), png, 0o644))

	root, err := OpenDir(dir)
	require.NoError(t, err)
	child, err := root.FindChild(context.Background(), "image")
	require.NoError(t, err)
	assert.Equal(t, "image/png", child.MimeType())
}

func TestCreateWriteRead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root, err := OpenDir(dir)
	require.NoError(t, err)

	sub, err := root.CreateChildDirectory(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, sub.IsDirectory())

	f, err := sub.CreateChildFile(ctx, "text/plain", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", f.MimeType())

	w, err := f.OpenWriteStream(ctx)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "dir", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	r, err := f.OpenReadStream(ctx)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(got))

	_, err = sub.CreateChildFile(ctx, "text/plain", "x.txt")
	assert.Error(t, err, "creating over an existing file must fail")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "gone.txt", "x", time.Now())

	root, err := OpenDir(dir)
	require.NoError(t, err)
	child, err := root.FindChild(ctx, "gone.txt")
	require.NoError(t, err)

	require.NoError(t, child.Delete(ctx))
	_, err = os.Stat(filepath.Join(dir, "gone.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, root.Delete(ctx))
}

func TestListChildrenOnFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "A", time.Now())
	root, err := OpenDir(dir)
	require.NoError(t, err)
	child, err := root.FindChild(context.Background(), "a.txt")
	require.NoError(t, err)

	_, err = child.ListChildren(context.Background())
	assert.ErrorIs(t, err, handle.ErrNotDirectory)
}

func TestMemoryOpener(t *testing.T) {
	fsys := MemoryFS(t.Name())
	require.NoError(t, util.WriteFile(fsys, "/docs/readme.md", []byte("r"), 0o644))

	root, err := MemoryOpener(context.Background(), t.Name())
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, childNames(t, root))

	_, err = MemoryOpener(context.Background(), "")
	assert.Error(t, err)
}

func TestMemoryFS_SharedAndRooted(t *testing.T) {
	fsys := MemoryFS(t.Name())
	assert.Same(t, fsys, MemoryFS(t.Name()))

	info, err := fsys.Stat(rootPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	root, err := MemoryOpener(context.Background(), t.Name())
	require.NoError(t, err)
	assert.Empty(t, childNames(t, root))
}
