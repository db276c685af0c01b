// Package catalog builds and holds the area hierarchy and the download
// index of a free download server.
package catalog

import (
	"fmt"

	"osmgrab/internal/utils"
)

// Hierarchy is the nested area tree of one archive. A flat archive is
// a hierarchy of depth 1: every area is a root and a leaf. The JSON
// form is what gets cached.
type Hierarchy struct {
	// Roots are the top-level area names, in discovery order.
	Roots []string `json:"roots"`
	// Children maps every internal node to its direct children, in
	// discovery order. Leaves do not appear as keys.
	Children map[string][]string `json:"children"`
	// Leaves are all areas with no subregions, first-seen order,
	// deduplicated.
	Leaves []string `json:"leaves"`

	leafSet map[string]struct{}
}

// ErrUnknownArea is reported by Subregions for names that are neither
// tree nodes nor leaves. Callers resolve names first, so hitting it
// means the hierarchy and the index are out of step.
type ErrUnknownArea struct {
	Name string
}

func (e *ErrUnknownArea) Error() string {
	return fmt.Sprintf("area %q is not part of the hierarchy", e.Name)
}

func (h *Hierarchy) leaves() map[string]struct{} {
	if h.leafSet == nil {
		h.leafSet = make(map[string]struct{}, len(h.Leaves))
		for _, l := range h.Leaves {
			h.leafSet[l] = struct{}{}
		}
	}
	return h.leafSet
}

// IsLeaf reports whether name has no subregions.
func (h *Hierarchy) IsLeaf(name string) bool {
	_, ok := h.leaves()[name]
	return ok
}

// Contains reports whether name is a known node (internal or leaf).
func (h *Hierarchy) Contains(name string) bool {
	if _, ok := h.Children[name]; ok {
		return true
	}
	return h.IsLeaf(name)
}

// Subregions returns the direct children of the named area. With deep
// set, every returned child that is not a known leaf is expanded in
// turn, accumulating a flattened, duplicate-free list until no further
// expansion is possible. A leaf yields an empty list.
func (h *Hierarchy) Subregions(name string, deep bool) ([]string, error) {
	if !h.Contains(name) {
		return nil, &ErrUnknownArea{Name: name}
	}
	direct := append([]string(nil), h.Children[name]...)
	if !deep {
		return direct, nil
	}

	var out []string
	expanded := make(map[string]struct{})
	pending := direct
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]
		if h.IsLeaf(next) || len(h.Children[next]) == 0 {
			out = append(out, next)
			continue
		}
		if _, done := expanded[next]; done {
			continue
		}
		expanded[next] = struct{}{}
		pending = append(pending, h.Children[next]...)
	}
	return utils.Dedupe(out), nil
}
