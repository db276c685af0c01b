package cmd

import (
	"osmgrab/pkg/archive"
	"osmgrab/pkg/archive/bbbike"
	"osmgrab/pkg/fetch"
)

var bbbikeCmd = newArchiveCommand(
	"bbbike",
	"BBBike",
	"Downloads OSM city extracts from BBBike (https://download.bbbike.org/osm/bbbike/)",
	".pbf",
	func(client *fetch.Client) archive.Source { return bbbike.New(client) },
)

func init() {
	rootCmd.AddCommand(bbbikeCmd)
}
