package planner

import (
	"path/filepath"
	"testing"

	"osmgrab/pkg/archive"
	"osmgrab/pkg/catalog"
)

func TestAreaDirname(t *testing.T) {
	tests := []struct {
		area string
		want string
	}{
		{"Greater London", "greater-london"},
		{"Rutland", "rutland"},
		{"Georgia (US)", "georgia-us"},
		{"Haute-Normandie", "haute-normandie"},
	}
	for _, tt := range tests {
		if got := AreaDirname(tt.area); got != tt.want {
			t.Errorf("AreaDirname(%q) = %q, want %q", tt.area, got, tt.want)
		}
	}
}

func TestFormatScopedDirname(t *testing.T) {
	tests := []struct {
		area   string
		format string
		want   string
	}{
		{"Great Britain", ".shp.zip", "great-britain-shp-zip"},
		{"Rutland", ".osm.pbf", "rutland-osm-pbf"},
	}
	for _, tt := range tests {
		if got := formatScopedDirname(tt.area, tt.format); got != tt.want {
			t.Errorf("formatScopedDirname(%q, %q) = %q, want %q", tt.area, tt.format, got, tt.want)
		}
	}
}

func TestIsFormatScopedDir(t *testing.T) {
	formats := []string{".osm.pbf", ".shp.zip"}
	if !isFormatScopedDir(filepath.Join("x", "great-britain-shp-zip"), formats) {
		t.Error("cascade directory should be recognized")
	}
	if isFormatScopedDir(filepath.Join("x", "osm_data"), formats) {
		t.Error("plain directory must not be recognized")
	}
}

func TestDestPath(t *testing.T) {
	p := New(archive.Profile{
		Name:          "Geofabrik",
		FileFormats:   []string{".osm.pbf", ".shp.zip"},
		DownloadDir:   filepath.Join("osm_data", "geofabrik"),
		MirrorURLPath: true,
	}, &catalog.Hierarchy{}, &catalog.Index{Entries: map[string]catalog.Entry{}}, nil, Options{Log: quietLogger()})

	rawURL := "https://download.geofabrik.de/europe/great-britain/england-latest.osm.pbf"

	got := p.destPath("England", rawURL, "")
	want := filepath.Join("osm_data", "geofabrik", "europe", "great-britain", "england", "england-latest.osm.pbf")
	if got != want {
		t.Errorf("default destPath = %q, want %q", got, want)
	}

	got = p.destPath("England", rawURL, filepath.Join("tests", "osm_data"))
	want = filepath.Join("tests", "osm_data", "england", "england-latest.osm.pbf")
	if got != want {
		t.Errorf("explicit-dir destPath = %q, want %q", got, want)
	}

	got = p.destPath("England", rawURL, filepath.Join("tests", "great-britain-osm-pbf"))
	want = filepath.Join("tests", "great-britain-osm-pbf", "england-latest.osm.pbf")
	if got != want {
		t.Errorf("cascade-dir destPath = %q, want %q", got, want)
	}
}

func TestSubDownloadDir(t *testing.T) {
	ix := &catalog.Index{Entries: map[string]catalog.Entry{
		"Great Britain": {
			Area: "Great Britain",
			Formats: map[string]string{
				".osm.pbf": "https://download.geofabrik.de/europe/great-britain-latest.osm.pbf",
			},
		},
	}}
	p := New(archive.Profile{
		Name:          "Geofabrik",
		FileFormats:   []string{".osm.pbf", ".shp.zip"},
		DownloadDir:   filepath.Join("osm_data", "geofabrik"),
		MirrorURLPath: true,
	}, &catalog.Hierarchy{}, ix, nil, Options{Log: quietLogger()})

	got := p.subDownloadDir("Great Britain", ".shp.zip", filepath.Join("tests", "osm_data"))
	want := filepath.Join("tests", "osm_data", "great-britain-shp-zip")
	if got != want {
		t.Errorf("explicit subDownloadDir = %q, want %q", got, want)
	}

	got = p.subDownloadDir("Great Britain", ".shp.zip", "")
	want = filepath.Join("osm_data", "geofabrik", "europe", "great-britain", "great-britain-shp-zip")
	if got != want {
		t.Errorf("default subDownloadDir = %q, want %q", got, want)
	}
}
