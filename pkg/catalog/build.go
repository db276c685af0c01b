package catalog

import (
	"context"
	"fmt"
	"strings"

	"osmgrab/internal/utils"
	"osmgrab/pkg/archive"
)

// Build walks the listing source and materializes the area hierarchy
// and the download index in a single traversal. The traversal is an
// explicit worklist, not recursion, and a visited set guards against a
// malformed source announcing the same area twice: the duplicate edge
// is kept, but the node is never expanded again.
func Build(ctx context.Context, src archive.Source) (*Hierarchy, *Index, error) {
	profile := src.Profile()

	roots, err := src.RootListings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s root areas: %w", profile.Name, err)
	}

	h := &Hierarchy{Children: make(map[string][]string)}
	ix := &Index{Entries: make(map[string]Entry)}

	type node struct {
		listing archive.Listing
		name    string
	}

	// admit registers a listing under its canonical name. The second
	// result is false when the name was already admitted, in which case
	// the caller must not expand it again.
	admit := func(l archive.Listing) (string, bool) {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return "", false
		}
		if _, seen := ix.Entries[name]; seen {
			if profile.DuplicateSuffix != "" && profile.DuplicateIDPrefix != "" &&
				strings.HasPrefix(l.ID, profile.DuplicateIDPrefix) {
				name += profile.DuplicateSuffix
				if _, seen := ix.Entries[name]; seen {
					utils.Log.Debugf("%s: area %q announced again, not expanding", profile.Name, name)
					return name, false
				}
			} else {
				utils.Log.Debugf("%s: area %q announced again, not expanding", profile.Name, name)
				return name, false
			}
		}
		ix.Entries[name] = Entry{
			Area:    name,
			PageURL: l.PageURL,
			Formats: copyFormats(l.Formats),
		}
		return name, true
	}

	var work []node
	for _, r := range roots {
		name, fresh := admit(r)
		if name == "" {
			continue
		}
		h.Roots = append(h.Roots, name)
		if fresh {
			work = append(work, node{listing: r, name: name})
		}
	}

	leafSeen := make(map[string]struct{})
	for len(work) > 0 {
		n := work[0]
		work = work[1:]

		children, err := src.ListChildren(ctx, n.listing)
		if err != nil {
			return nil, nil, fmt.Errorf("listing subregions of %q: %w", n.name, err)
		}
		if len(children) == 0 {
			if _, dup := leafSeen[n.name]; !dup {
				leafSeen[n.name] = struct{}{}
				h.Leaves = append(h.Leaves, n.name)
			}
			continue
		}
		for _, c := range children {
			name, fresh := admit(c)
			if name == "" {
				continue
			}
			h.Children[n.name] = append(h.Children[n.name], name)
			if fresh {
				work = append(work, node{listing: c, name: name})
			}
		}
	}

	return h, ix, nil
}

func copyFormats(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
