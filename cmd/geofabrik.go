package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"osmgrab/internal/utils"
	"osmgrab/pkg/archive"
	"osmgrab/pkg/archive/geofabrik"
	"osmgrab/pkg/fetch"
)

var geofabrikCmd = newArchiveCommand(
	"geofabrik",
	"Geofabrik",
	"Downloads OSM data extracts from Geofabrik (https://download.geofabrik.de/)",
	".osm.pbf",
	func(client *fetch.Client) archive.Source { return geofabrik.New(client) },
)

// filesCmd lists the raw directory index of a (sub)region's page, a
// Geofabrik-only feature.
var filesCmd = &cobra.Command{
	Use:   "files URL",
	Short: "List the raw directory index of a (sub)region page",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		proxy, _ := rootCmd.PersistentFlags().GetString("proxy")
		client, err := fetch.NewClient(proxy, false)
		if err != nil {
			utils.Log.Fatal(err)
		}
		entries, err := geofabrik.New(client).DirectoryIndex(cmd.Context(), args[0])
		if err != nil {
			utils.Log.Fatal(err)
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%s\t%s\n", e.File, e.Size, e.Date, e.URL)
		}
	},
}

func init() {
	geofabrikCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(geofabrikCmd)
}
