// Package handletest provides an in-memory handle tree with explicit timestamps and failure
// injection for exercising code built on the handle package.
package handletest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openmined/foldersync/internal/handle"
)

// Op names a node capability that can be made to fail.
type Op string

const (
	OpList        Op = "list"
	OpRead        Op = "read"
	OpWrite       Op = "write"
	OpCreateFile  Op = "create-file"
	OpCreateDir   Op = "create-dir"
	OpDelete      Op = "delete"
	OpReturnNil   Op = "return-nil" // create calls succeed but return no handle
	OpCloseWriter Op = "close-writer"
)

var ErrInjected = errors.New("injected failure")

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDir
	kindOther
)

// Tree is a mutable in-memory directory tree. All nodes share the tree lock.
type Tree struct {
	root  *Node
	clock func() int64
	mu    sync.Mutex
}

// Node is one file, directory or unclassifiable node of a Tree. It implements handle.Handle.
type Node struct {
	tree     *Tree
	parent   *Node
	name     string
	kind     nodeKind
	content  []byte
	modTime  int64
	mimeType string
	children []*Node
	fail     map[Op]bool
	deleted  bool
}

var _ handle.Handle = (*Node)(nil)

// NewTree returns an empty tree whose root is called name.
func NewTree(name string) *Tree {
	t := &Tree{
		clock: func() int64 { return time.Now().UnixMilli() },
	}
	t.root = &Node{tree: t, name: name, kind: kindDir, fail: map[Op]bool{}}
	return t
}

// SetClock overrides the timestamp given to written files.
func (t *Tree) SetClock(clock func() int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
}

func (t *Tree) Root() *Node {
	return t.root
}

// AddFile creates (or replaces) the file at the slash separated path, creating parents.
func (t *Tree) AddFile(path, content string, modTime int64) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir, name := t.mkdirs(parentOf(path)), baseOf(path)
	if existing := dir.child(name); existing != nil {
		dir.remove(existing)
	}
	n := &Node{tree: t, parent: dir, name: name, kind: kindFile, content: []byte(content), modTime: modTime, fail: map[Op]bool{}}
	dir.children = append(dir.children, n)
	return n
}

// AddDuplicateFile appends another file called like the last segment of path, keeping any
// existing one, so the directory lists the same name twice.
func (t *Tree) AddDuplicateFile(path, content string, modTime int64) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := t.mkdirs(parentOf(path))
	n := &Node{tree: t, parent: dir, name: baseOf(path), kind: kindFile, content: []byte(content), modTime: modTime, fail: map[Op]bool{}}
	dir.children = append(dir.children, n)
	return n
}

// AddDir creates the directory at path and its parents.
func (t *Tree) AddDir(path string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mkdirs(path)
}

// AddUnnamed adds a child without a name to the directory at dirPath.
func (t *Tree) AddUnnamed(dirPath string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := t.mkdirs(dirPath)
	n := &Node{tree: t, parent: dir, kind: kindFile, content: []byte("?"), fail: map[Op]bool{}}
	dir.children = append(dir.children, n)
	return n
}

// AddOther adds a node that is neither a file nor a directory.
func (t *Tree) AddOther(path string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := t.mkdirs(parentOf(path))
	n := &Node{tree: t, parent: dir, name: baseOf(path), kind: kindOther, fail: map[Op]bool{}}
	dir.children = append(dir.children, n)
	return n
}

// Get returns the node at path or nil. The empty path is the root.
func (t *Tree) Get(path string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(path)
}

// ReadFile returns the content of the file at path.
func (t *Tree) ReadFile(path string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.lookup(path)
	if n == nil || n.kind != kindFile {
		return "", false
	}
	return string(n.content), true
}

// Files returns every file path in the tree, sorted.
func (t *Tree) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []string
	var walk func(n *Node, prefix string)
	walk = func(n *Node, prefix string) {
		for _, c := range n.children {
			p := c.name
			if prefix != "" {
				p = prefix + "/" + c.name
			}
			switch c.kind {
			case kindDir:
				walk(c, p)
			case kindFile:
				paths = append(paths, p)
			}
		}
	}
	walk(t.root, "")
	sort.Strings(paths)
	return paths
}

// Snapshot returns path -> content for every file.
func (t *Tree) Snapshot() map[string]string {
	out := make(map[string]string)
	for _, p := range t.Files() {
		out[p], _ = t.ReadFile(p)
	}
	return out
}

func (t *Tree) lookup(path string) *Node {
	n := t.root
	if path == "" {
		return n
	}
	for _, seg := range strings.Split(path, "/") {
		n = n.child(seg)
		if n == nil {
			return nil
		}
	}
	return n
}

func (t *Tree) mkdirs(path string) *Node {
	n := t.root
	if path == "" {
		return n
	}
	for _, seg := range strings.Split(path, "/") {
		c := n.child(seg)
		if c == nil {
			c = &Node{tree: t, parent: n, name: seg, kind: kindDir, fail: map[Op]bool{}}
			n.children = append(n.children, c)
		}
		n = c
	}
	return n
}

// Fail makes op fail on this node from now on.
func (n *Node) Fail(ops ...Op) *Node {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	for _, op := range ops {
		n.fail[op] = true
	}
	return n
}

// SetMimeType sets the content type reported by the node.
func (n *Node) SetMimeType(mt string) *Node {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.mimeType = mt
	return n
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) IsDirectory() bool {
	return n.kind == kindDir
}

func (n *Node) IsFile() bool {
	return n.kind == kindFile
}

func (n *Node) LastModified() int64 {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.modTime
}

func (n *Node) MimeType() string {
	if n.mimeType == "" {
		return handle.DefaultMimeType
	}
	return n.mimeType
}

func (n *Node) ListChildren(_ context.Context) ([]handle.Handle, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpList); err != nil {
		return nil, err
	}
	if n.kind != kindDir {
		return nil, handle.ErrNotDirectory
	}
	out := make([]handle.Handle, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out, nil
}

func (n *Node) OpenReadStream(_ context.Context) (io.ReadCloser, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpRead); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(n.content))), nil
}

func (n *Node) OpenWriteStream(_ context.Context) (io.WriteCloser, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpWrite); err != nil {
		return nil, err
	}
	return &nodeWriter{node: n}, nil
}

func (n *Node) CreateChildFile(_ context.Context, mimeType, name string) (handle.Handle, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpCreateFile); err != nil {
		return nil, err
	}
	if n.fail[OpReturnNil] {
		return nil, nil
	}
	if n.kind != kindDir {
		return nil, handle.ErrNotDirectory
	}
	if n.child(name) != nil {
		return nil, fmt.Errorf("%s already exists", name)
	}
	c := &Node{tree: n.tree, parent: n, name: name, kind: kindFile, mimeType: mimeType, modTime: n.tree.clock(), fail: map[Op]bool{}}
	n.children = append(n.children, c)
	return c, nil
}

func (n *Node) CreateChildDirectory(_ context.Context, name string) (handle.Handle, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpCreateDir); err != nil {
		return nil, err
	}
	if n.fail[OpReturnNil] {
		return nil, nil
	}
	if n.kind != kindDir {
		return nil, handle.ErrNotDirectory
	}
	if n.child(name) != nil {
		return nil, fmt.Errorf("%s already exists", name)
	}
	c := &Node{tree: n.tree, parent: n, name: name, kind: kindDir, fail: map[Op]bool{}}
	n.children = append(n.children, c)
	return c, nil
}

func (n *Node) Delete(_ context.Context) error {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if err := n.check(OpDelete); err != nil {
		return err
	}
	if n.parent == nil {
		return errors.New("cannot delete root")
	}
	n.parent.remove(n)
	n.deleted = true
	return nil
}

// check must be called with the tree lock held.
func (n *Node) check(op Op) error {
	if n.deleted {
		return handle.ErrNotAccessible
	}
	if n.fail[op] {
		return fmt.Errorf("%s %q: %w", op, n.name, ErrInjected)
	}
	return nil
}

func (n *Node) child(name string) *Node {
	for _, c := range n.children {
		if c.name == name && name != "" {
			return c
		}
	}
	return nil
}

func (n *Node) remove(c *Node) {
	for i, cur := range n.children {
		if cur == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

type nodeWriter struct {
	node *Node
	buf  bytes.Buffer
}

func (w *nodeWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *nodeWriter) Close() error {
	t := w.node.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := w.node.check(OpCloseWriter); err != nil {
		return err
	}
	w.node.content = bytes.Clone(w.buf.Bytes())
	w.node.modTime = t.clock()
	return nil
}

func parentOf(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return ""
}

func baseOf(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
