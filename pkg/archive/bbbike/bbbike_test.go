package bbbike

import (
	"context"
	"fmt"
	"testing"
)

type stubGetter struct {
	bodies map[string][]byte
}

func (s *stubGetter) Get(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := s.bodies[rawURL]
	if !ok {
		return nil, fmt.Errorf("unexpected request for %s", rawURL)
	}
	return body, nil
}

const cityPageFixture = `<html><body>
<table>
<tr><td><a class="download_link" href="Leeds.osm.pbf" title="last update: 2026-08-20">PBF <span>30M</span></a></td></tr>
<tr><td><a class="download_link" href="Leeds.osm.shp.zip" title="last update: 2026-08-20">Shapefile <span>65M</span></a></td></tr>
<tr><td><a class="download_link" href="Leeds.osm.garmin-osm.zip" title="last update: 2026-08-20">Garmin <span>40M</span></a></td></tr>
<tr><td><a class="small" href="Leeds.poly">poly</a></td></tr>
<tr><td><a class="download_link" href="CHECKSUM.txt" title="last update: 2026-08-20">Checksum</a></td></tr>
</table>
</body></html>`

func TestParseDownloadLinks(t *testing.T) {
	formats, err := parseDownloadLinks("Leeds", BaseURL+"Leeds/", []byte(cityPageFixture))
	if err != nil {
		t.Fatalf("parseDownloadLinks: %v", err)
	}

	want := map[string]string{
		".pbf":            BaseURL + "Leeds/Leeds.osm.pbf",
		".shp.zip":        BaseURL + "Leeds/Leeds.osm.shp.zip",
		".garmin-osm.zip": BaseURL + "Leeds/Leeds.osm.garmin-osm.zip",
	}
	if len(formats) != len(want) {
		t.Fatalf("formats = %v, want %v", formats, want)
	}
	for format, url := range want {
		if formats[format] != url {
			t.Errorf("formats[%q] = %q, want %q", format, formats[format], url)
		}
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		ok       bool
	}{
		{"Leeds.osm.pbf", ".pbf", true},
		{"Leeds.osm.garmin-onroad-latin1.zip", ".garmin-onroad-latin1.zip", true},
		{"Leeds.osm.csv.xz", ".csv.xz", true},
		{"Leeds.poly", "", false},
		{"CHECKSUM.txt", "", false},
		{"Berlin.osm.pbf", "", false},
	}
	for _, tt := range tests {
		got, ok := formatOf("Leeds", tt.filename)
		if got != tt.want || ok != tt.ok {
			t.Errorf("formatOf(Leeds, %q) = %q, %v; want %q, %v", tt.filename, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRootListings(t *testing.T) {
	c := New(&stubGetter{bodies: map[string][]byte{
		CitiesURL:          []byte("Leeds\n\n# comment\n"),
		BaseURL + "Leeds/": []byte(cityPageFixture),
	}})

	listings, err := c.RootListings(context.Background())
	if err != nil {
		t.Fatalf("RootListings: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %+v, want one city", listings)
	}
	leeds := listings[0]
	if leeds.Name != "Leeds" || leeds.ID != "Leeds" {
		t.Fatalf("listing = %+v", leeds)
	}
	if leeds.PageURL != BaseURL+"Leeds/" {
		t.Fatalf("PageURL = %q", leeds.PageURL)
	}
	if leeds.Formats[".pbf"] == "" || leeds.Formats[".shp.zip"] == "" {
		t.Fatalf("Formats = %v", leeds.Formats)
	}

	children, err := c.ListChildren(context.Background(), leeds)
	if err != nil || len(children) != 0 {
		t.Fatalf("cities must be leaves, got %v, %v", children, err)
	}
}

func TestCityNamesEmpty(t *testing.T) {
	c := New(&stubGetter{bodies: map[string][]byte{
		CitiesURL: []byte("\n# only comments\n"),
	}})
	if _, err := c.cityNames(context.Background()); err == nil {
		t.Fatal("an empty city list should be an error")
	}
}
