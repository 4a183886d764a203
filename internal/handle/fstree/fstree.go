// Package fstree exposes go-billy filesystems (local disk or in-memory) as handle trees.
package fstree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/utils"
)

const (
	rootPath = "/"
	filePerm = 0o644
	dirPerm  = 0o755
)

// Node is a file or directory inside a billy filesystem.
type Node struct {
	fs      billy.Filesystem
	path    string
	name    string
	mode    os.FileMode
	modTime time.Time

	mimeOnce sync.Once
	mimeType string
}

var (
	_ handle.Handle      = (*Node)(nil)
	_ handle.ChildFinder = (*Node)(nil)
)

// Open returns the root node of fsys. name is reported as the root's Name.
func Open(fsys billy.Filesystem, name string) (*Node, error) {
	info, err := fsys.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, handle.ErrNotDirectory
	}
	return &Node{
		fs:      fsys,
		path:    rootPath,
		name:    name,
		mode:    info.Mode(),
		modTime: info.ModTime(),
	}, nil
}

// OpenDir returns the root node of the local directory dir.
func OpenDir(dir string) (*Node, error) {
	abs, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(abs) {
		return nil, fmt.Errorf("%s: %w", abs, handle.ErrNotDirectory)
	}
	return Open(osfs.New(abs), filepath.Base(abs))
}

// DirOpener resolves "file" references (absolute, relative or "~" paths).
func DirOpener(_ context.Context, ref string) (handle.Handle, error) {
	root, err := OpenDir(ref)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func newNode(fsys billy.Filesystem, path string, info os.FileInfo) *Node {
	return &Node{
		fs:      fsys,
		path:    path,
		name:    info.Name(),
		mode:    info.Mode(),
		modTime: info.ModTime(),
	}
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) IsDirectory() bool {
	return n.mode.IsDir()
}

// IsFile is true for regular files only; symlinks and devices are neither files nor
// directories.
func (n *Node) IsFile() bool {
	return n.mode.IsRegular()
}

func (n *Node) LastModified() int64 {
	return n.modTime.UnixMilli()
}

// MimeType guesses from the extension first and sniffs the content when the extension is
// unknown.
func (n *Node) MimeType() string {
	n.mimeOnce.Do(func() {
		n.mimeType = utils.DetectContentType(n.name)
		if n.mimeType != utils.OctetStream || !n.IsFile() {
			return
		}
		f, err := n.fs.Open(n.path)
		if err != nil {
			return
		}
		defer f.Close()
		if mt, err := mimetype.DetectReader(f); err == nil {
			n.mimeType = mt.String()
		}
	})
	if n.mimeType == "" {
		return handle.DefaultMimeType
	}
	return n.mimeType
}

func (n *Node) ListChildren(_ context.Context) ([]handle.Handle, error) {
	if !n.IsDirectory() {
		return nil, fmt.Errorf("list %s: %w", n.path, handle.ErrNotDirectory)
	}
	infos, err := n.fs.ReadDir(n.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", n.path, translateError(err))
	}

	children := make([]handle.Handle, 0, len(infos))
	for _, info := range infos {
		children = append(children, newNode(n.fs, n.fs.Join(n.path, info.Name()), info))
	}
	return children, nil
}

func (n *Node) FindChild(_ context.Context, name string) (handle.Handle, error) {
	if !n.IsDirectory() {
		return nil, handle.ErrNotDirectory
	}
	childPath := n.fs.Join(n.path, name)
	info, err := n.fs.Lstat(childPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", childPath, translateError(err))
	}
	return newNode(n.fs, childPath, info), nil
}

func (n *Node) OpenReadStream(_ context.Context) (io.ReadCloser, error) {
	f, err := n.fs.Open(n.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n.path, translateError(err))
	}
	return f, nil
}

func (n *Node) OpenWriteStream(_ context.Context) (io.WriteCloser, error) {
	f, err := n.fs.OpenFile(n.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open %s for writing: %w", n.path, translateError(err))
	}
	return f, nil
}

// CreateChildFile creates an empty file. It fails if a node of that name already exists.
func (n *Node) CreateChildFile(_ context.Context, mimeType, name string) (handle.Handle, error) {
	if !n.IsDirectory() {
		return nil, handle.ErrNotDirectory
	}
	childPath := n.fs.Join(n.path, name)
	f, err := n.fs.OpenFile(childPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", childPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create %s: %w", childPath, err)
	}

	info, err := n.fs.Stat(childPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", childPath, err)
	}
	child := newNode(n.fs, childPath, info)
	child.mimeOnce.Do(func() { child.mimeType = mimeType })
	slog.Debug("fstree create file", "path", childPath, "mime", mimeType)
	return child, nil
}

func (n *Node) CreateChildDirectory(_ context.Context, name string) (handle.Handle, error) {
	if !n.IsDirectory() {
		return nil, handle.ErrNotDirectory
	}
	childPath := n.fs.Join(n.path, name)
	if err := n.fs.MkdirAll(childPath, dirPerm); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", childPath, err)
	}
	info, err := n.fs.Stat(childPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", childPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mkdir %s: %w", childPath, handle.ErrNotDirectory)
	}
	return newNode(n.fs, childPath, info), nil
}

func (n *Node) Delete(_ context.Context) error {
	if n.path == rootPath {
		return errors.New("refusing to delete tree root")
	}
	if err := n.fs.Remove(n.path); err != nil {
		return fmt.Errorf("remove %s: %w", n.path, translateError(err))
	}
	return nil
}

func translateError(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", handle.ErrNotAccessible, err)
	}
	return err
}
