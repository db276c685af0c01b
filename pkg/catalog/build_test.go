package catalog

import (
	"context"
	"reflect"
	"testing"

	"osmgrab/pkg/archive"
)

// fakeSource serves a canned listing tree keyed by listing ID.
type fakeSource struct {
	profile  archive.Profile
	roots    []archive.Listing
	children map[string][]archive.Listing
}

func (f *fakeSource) Profile() archive.Profile { return f.profile }

func (f *fakeSource) RootListings(context.Context) ([]archive.Listing, error) {
	return f.roots, nil
}

func (f *fakeSource) ListChildren(_ context.Context, l archive.Listing) ([]archive.Listing, error) {
	return f.children[l.ID], nil
}

func geofabrikLikeSource() *fakeSource {
	return &fakeSource{
		profile: archive.Profile{
			Name:              "Geofabrik",
			DuplicateSuffix:   " (US)",
			DuplicateIDPrefix: "us/",
		},
		roots: []archive.Listing{
			{ID: "europe", Name: "Europe", PageURL: "https://x/europe.html"},
			{ID: "north-america", Name: "North America", PageURL: "https://x/north-america.html"},
		},
		children: map[string][]archive.Listing{
			"europe": {
				{ID: "georgia", Name: "Georgia", Formats: map[string]string{".osm.pbf": "https://x/europe/georgia.osm.pbf"}},
				{ID: "great-britain", Name: "Great Britain", PageURL: "https://x/europe/great-britain.html",
					Formats: map[string]string{".osm.pbf": "https://x/europe/great-britain.osm.pbf"}},
			},
			"north-america": {
				{ID: "us/georgia", Name: "Georgia", Formats: map[string]string{".osm.pbf": "https://x/us/georgia.osm.pbf"}},
			},
			"great-britain": {
				{ID: "england", Name: "England", Formats: map[string]string{".osm.pbf": "https://x/europe/gb/england.osm.pbf", ".shp.zip": ""}},
			},
		},
	}
}

func TestBuildTree(t *testing.T) {
	h, ix, err := Build(context.Background(), geofabrikLikeSource())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if want := []string{"Europe", "North America"}; !reflect.DeepEqual(h.Roots, want) {
		t.Fatalf("Roots = %v, want %v", h.Roots, want)
	}
	if want := []string{"Georgia", "Great Britain"}; !reflect.DeepEqual(h.Children["Europe"], want) {
		t.Fatalf("Children[Europe] = %v, want %v", h.Children["Europe"], want)
	}
	if want := []string{"England"}; !reflect.DeepEqual(h.Children["Great Britain"], want) {
		t.Fatalf("Children[Great Britain] = %v, want %v", h.Children["Great Britain"], want)
	}
	if !h.IsLeaf("Georgia") || !h.IsLeaf("England") {
		t.Errorf("Leaves = %v, want Georgia and England among them", h.Leaves)
	}
	if h.IsLeaf("Great Britain") {
		t.Error("Great Britain has children, must not be a leaf")
	}

	if _, ok := ix.Entry("Georgia"); !ok {
		t.Error("index should hold the European Georgia")
	}
	if _, ok := ix.Entry("Georgia (US)"); !ok {
		t.Error("colliding US state should be admitted with its suffix")
	}
	if want := []string{"Georgia (US)"}; !reflect.DeepEqual(h.Children["North America"], want) {
		t.Fatalf("Children[North America] = %v, want %v", h.Children["North America"], want)
	}
}

func TestBuildDropsEmptyFormatURLs(t *testing.T) {
	_, ix, err := Build(context.Background(), geofabrikLikeSource())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := ix.URL("England", ".shp.zip"); ok {
		t.Error("empty format URL must not be indexed")
	}
	if u, ok := ix.URL("England", ".osm.pbf"); !ok || u == "" {
		t.Error("published format URL should be indexed")
	}
}

func TestBuildRepeatedAnnouncementNotReexpanded(t *testing.T) {
	src := &fakeSource{
		profile: archive.Profile{Name: "Loopy"},
		roots: []archive.Listing{
			{ID: "a", Name: "A", PageURL: "https://x/a"},
		},
		children: map[string][]archive.Listing{
			"a": {
				{ID: "b", Name: "B", PageURL: "https://x/b"},
			},
			"b": {
				{ID: "a", Name: "A", PageURL: "https://x/a"},
				{ID: "c", Name: "C"},
			},
		},
	}

	h, ix, err := Build(context.Background(), src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The duplicate edge survives, the node is expanded only once.
	if want := []string{"A", "C"}; !reflect.DeepEqual(h.Children["B"], want) {
		t.Fatalf("Children[B] = %v, want %v", h.Children["B"], want)
	}
	if got := len(ix.Entries); got != 3 {
		t.Fatalf("index holds %d entries, want 3", got)
	}
}

func TestIndexNamesSorted(t *testing.T) {
	_, ix, err := Build(context.Background(), geofabrikLikeSource())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	names := ix.Names()
	want := []string{"England", "Europe", "Georgia", "Georgia (US)", "Great Britain", "North America"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
}
