// Package pairs persists the configured source/destination tree pairs.
package pairs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPairNotFound    = errors.New("sync pair not found")
	ErrAmbiguousPairID = errors.New("ambiguous sync pair id")
	ErrPairIncomplete  = errors.New("both folders must be selected")
)

// SyncPairConfig describes one pair of trees to keep in sync. References are resolved by
// handle.Resolver, labels are for display only.
type SyncPairConfig struct {
	ID          string `json:"id" yaml:"id"`
	SourceRef   string `json:"source_ref" yaml:"source_ref"`
	SourceLabel string `json:"source_label,omitempty" yaml:"source_label,omitempty"`
	DestRef     string `json:"dest_ref" yaml:"dest_ref"`
	DestLabel   string `json:"dest_label,omitempty" yaml:"dest_label,omitempty"`
}

// Validate reports ErrPairIncomplete when a reference is missing.
func (p SyncPairConfig) Validate() error {
	if strings.TrimSpace(p.SourceRef) == "" || strings.TrimSpace(p.DestRef) == "" {
		return ErrPairIncomplete
	}
	return nil
}

// ShortID is the first eight characters of the id.
func (p SyncPairConfig) ShortID() string {
	if len(p.ID) > 8 {
		return p.ID[:8]
	}
	return p.ID
}

func (p SyncPairConfig) String() string {
	return fmt.Sprintf("%s -> %s", labelOr(p.SourceLabel, p.SourceRef), labelOr(p.DestLabel, p.DestRef))
}

func labelOr(label, ref string) string {
	if label != "" {
		return label
	}
	return ref
}
