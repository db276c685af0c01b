package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"osmgrab/pkg/archive"
	"osmgrab/pkg/cache"
)

// Service materializes an archive's catalog through the cache: a warm
// cache is decoded straight from disk, a cold one (or an explicit
// refresh) triggers a full listing traversal.
type Service struct {
	Source archive.Source
	Cache  *cache.Manager
}

type catalogPayload struct {
	Hierarchy *Hierarchy `json:"hierarchy"`
	Index     *Index     `json:"index"`
}

// Load returns the hierarchy and index for the service's archive.
// Refresh is total: the traversal runs from scratch and the cached
// payload is replaced wholesale.
func (s *Service) Load(ctx context.Context, refresh bool) (*Hierarchy, *Index, error) {
	name := s.Source.Profile().Name
	label := fmt.Sprintf("%s catalog", name)

	raw, ok := s.Cache.GetOrBuild(label, refresh, func() ([]byte, error) {
		h, ix, err := Build(ctx, s.Source)
		if err != nil {
			return nil, err
		}
		return json.Marshal(catalogPayload{Hierarchy: h, Index: ix})
	})
	if !ok {
		return nil, nil, fmt.Errorf("no catalog data available for %s", name)
	}

	var p catalogPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("decoding cached %s catalog: %w", name, err)
	}
	if p.Hierarchy == nil || p.Index == nil {
		return nil, nil, fmt.Errorf("cached %s catalog is incomplete", name)
	}
	return p.Hierarchy, p.Index, nil
}
