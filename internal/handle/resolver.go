package handle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Opener resolves the scheme-specific part of a tree reference into a root handle.
type Opener func(ctx context.Context, ref string) (Handle, error)

// Resolver maps tree references such as "file:///data", "mem://scratch" or "s3://bucket/prefix"
// to root handles. References without a scheme are handed to the "file" opener.
type Resolver struct {
	openers map[string]Opener
	mu      sync.RWMutex
}

func NewResolver() *Resolver {
	return &Resolver{
		openers: make(map[string]Opener),
	}
}

// Register installs the opener for scheme, replacing any previous one.
func (r *Resolver) Register(scheme string, opener Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[strings.ToLower(scheme)] = opener
}

// Schemes returns the registered schemes.
func (r *Resolver) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.openers))
	for scheme := range r.openers {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Resolve returns the root directory handle for ref. Any failure, including a root that is not
// a directory, wraps ErrNotAccessible.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Handle, error) {
	scheme, rest := SplitReference(ref)

	r.mu.RLock()
	opener, ok := r.openers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", ErrNotAccessible, scheme, ref)
	}

	h, err := opener(ctx, rest)
	if err != nil {
		slog.Debug("resolve tree", "ref", ref, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAccessible, ref, err)
	}
	if !IsAccessibleDir(h) {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAccessible, ref, ErrNotDirectory)
	}
	return h, nil
}

// SplitReference splits "scheme://rest" into its parts. A reference without "://" is a local
// path and gets the "file" scheme.
func SplitReference(ref string) (scheme string, rest string) {
	idx := strings.Index(ref, "://")
	if idx <= 0 {
		return "file", ref
	}
	return strings.ToLower(ref[:idx]), ref[idx+3:]
}
