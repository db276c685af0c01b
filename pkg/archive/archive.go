package archive

import (
	"context"
)

// Listing is one raw catalog row as published by a download server:
// a named area, the page describing it (if any), and the download URL
// for every file format the server offers for it. A missing format
// token means the server does not publish that format for the area.
type Listing struct {
	// ID is the server's internal identifier (e.g. "us/georgia" on
	// Geofabrik). May be empty for servers without one.
	ID string
	// Name is the display name of the area.
	Name string
	// PageURL is the area's own web page, used to query its subregions.
	PageURL string
	// Formats maps a canonical format token (".osm.pbf") to its
	// download URL.
	Formats map[string]string
}

// Source supplies raw listing data for one download server. It knows
// nothing about caching, matching or planning; implementations do the
// archive-specific scraping.
type Source interface {
	Profile() Profile
	// RootListings returns the server's top-level areas (continents for
	// a hierarchical server, the full city list for a flat one).
	RootListings(ctx context.Context) ([]Listing, error)
	// ListChildren returns the nested listings of l. An empty result
	// (with nil error) means l is a leaf.
	ListChildren(ctx context.Context, l Listing) ([]Listing, error)
}

// Profile is the immutable per-server configuration consumed by the
// resolver and planner. Each archive supplies a value, not a subclass.
type Profile struct {
	// Name is the short server name ("Geofabrik", "BBBike").
	Name string
	// LongName is the full name of the data resource.
	LongName string
	// URL is the homepage of the free download server.
	URL string
	// FileFormats are the filename extensions the server publishes.
	FileFormats []string
	// DownloadDir is the default directory for downloaded files,
	// relative to the working directory.
	DownloadDir string
	// DuplicateSuffix is appended to a later-discovered area whose
	// display name collides with an earlier one (" (US)").
	DuplicateSuffix string
	// DuplicateIDPrefix selects which listing of a colliding pair earns
	// the suffix, matched against Listing.ID ("us/").
	DuplicateIDPrefix string
	// MirrorURLPath controls whether default download paths mirror the
	// directory structure of the download URL (Geofabrik) or use a flat
	// per-area folder (BBBike).
	MirrorURLPath bool
}

// ConfirmFunc gates expensive rebuilds and download batches. The CLI
// wires an interactive prompt; unattended callers pass an always-true
// stub.
type ConfirmFunc func(prompt string) bool

// ConfirmAll is the always-true stub for unattended use.
func ConfirmAll(string) bool { return true }
