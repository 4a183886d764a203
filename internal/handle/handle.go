// Package handle defines the capability-based tree node abstraction the sync engine works on.
//
// A Handle never exposes a raw filesystem path. Providers (local disk, in-memory, S3) hand out
// handles for trees the caller has already been granted access to; the engine only borrows them
// for the duration of one pass.
package handle

import (
	"context"
	"errors"
	"io"
)

// DefaultMimeType is used when a node does not report a content type.
const DefaultMimeType = "application/octet-stream"

var (
	// ErrNotAccessible is returned when a node is missing or cannot be reached.
	ErrNotAccessible = errors.New("not accessible")

	// ErrInvalidEntry is returned for nodes without a usable name.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrNotDirectory is returned when a directory-only capability is used on a file.
	ErrNotDirectory = errors.New("not a directory")
)

// Handle is a reference to one file or directory node.
type Handle interface {
	// Name returns the node name, or "" when the provider does not know it.
	Name() string

	IsDirectory() bool
	IsFile() bool

	// LastModified returns the modification time in epoch milliseconds.
	LastModified() int64

	// MimeType returns the content type of a file node. Never empty.
	MimeType() string

	// ListChildren returns the direct children of a directory.
	ListChildren(ctx context.Context) ([]Handle, error)

	OpenReadStream(ctx context.Context) (io.ReadCloser, error)

	// OpenWriteStream opens the file for writing, replacing any previous content.
	// The content is only guaranteed to be persisted once Close returns nil.
	OpenWriteStream(ctx context.Context) (io.WriteCloser, error)

	// CreateChildFile creates an empty file named name inside this directory.
	CreateChildFile(ctx context.Context, mimeType, name string) (Handle, error)

	// CreateChildDirectory creates a directory named name inside this directory.
	CreateChildDirectory(ctx context.Context, name string) (Handle, error)

	Delete(ctx context.Context) error
}

// ChildFinder is implemented by providers that can look up a child by name without listing
// the whole directory.
type ChildFinder interface {
	// FindChild returns the child called name, or (nil, nil) when there is none.
	FindChild(ctx context.Context, name string) (Handle, error)
}

// FindChild looks up the direct child called name. It returns (nil, nil) when dir has no such
// child.
func FindChild(ctx context.Context, dir Handle, name string) (Handle, error) {
	if finder, ok := dir.(ChildFinder); ok {
		return finder.FindChild(ctx, name)
	}

	children, err := dir.ListChildren(ctx)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Name() == name {
			return child, nil
		}
	}
	return nil, nil
}

// MimeTypeOf returns the mime type of h, falling back to DefaultMimeType.
func MimeTypeOf(h Handle) string {
	if h == nil {
		return DefaultMimeType
	}
	if mt := h.MimeType(); mt != "" {
		return mt
	}
	return DefaultMimeType
}

// IsAccessibleDir reports whether h is a usable directory root.
func IsAccessibleDir(h Handle) bool {
	return h != nil && h.IsDirectory()
}
