// Package bbbike lists the city extracts published on BBBike's free
// download server. The server is flat: every city is a leaf.
package bbbike

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"osmgrab/pkg/archive"
)

const (
	// BaseURL is the homepage of the free download server.
	BaseURL = "https://download.bbbike.org/osm/bbbike/"
	// CitiesURL lists the names of all available cities, one per line.
	CitiesURL = "https://raw.githubusercontent.com/wosch/bbbike-world/world/etc/cities.txt"
)

// fileFormats are the filename extensions published for every city.
var fileFormats = []string{
	".csv.xz",
	".garmin-onroad-latin1.zip",
	".garmin-onroad.zip",
	".garmin-opentopo.zip",
	".garmin-osm.zip",
	".geojson.xz",
	".gz",
	".mapsforge-osm.zip",
	".pbf",
	".shp.zip",
	".svg-osm.zip",
}

// Getter fetches one URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client lists BBBike's catalog.
type Client struct {
	getter Getter
}

// New builds a Client on top of an HTTP getter.
func New(getter Getter) *Client {
	return &Client{getter: getter}
}

// Profile describes the server for the resolver and planner.
func (c *Client) Profile() archive.Profile {
	return archive.Profile{
		Name:        "BBBike",
		LongName:    "BBBike exports of OpenStreetMap data",
		URL:         BaseURL,
		FileFormats: append([]string(nil), fileFormats...),
		DownloadDir: "osm_data/bbbike",
	}
}

// RootListings reads the city list and scrapes each city's page for
// its download links. Every returned listing is complete; the catalog
// is flat.
func (c *Client) RootListings(ctx context.Context) ([]archive.Listing, error) {
	names, err := c.cityNames(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]archive.Listing, 0, len(names))
	for _, name := range names {
		pageURL := BaseURL + name + "/"
		body, err := c.getter.Get(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetching catalog of %q: %w", name, err)
		}
		formats, err := parseDownloadLinks(name, pageURL, body)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog of %q: %w", name, err)
		}
		listings = append(listings, archive.Listing{
			ID:      name,
			Name:    name,
			PageURL: pageURL,
			Formats: formats,
		})
	}
	return listings, nil
}

// ListChildren always reports a leaf; cities have no subregions.
func (c *Client) ListChildren(context.Context, archive.Listing) ([]archive.Listing, error) {
	return nil, nil
}

func (c *Client) cityNames(ctx context.Context) ([]string, error) {
	body, err := c.getter.Get(ctx, CitiesURL)
	if err != nil {
		return nil, fmt.Errorf("fetching city list: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(body), "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("city list at %s is empty", CitiesURL)
	}
	return names, nil
}

// parseDownloadLinks walks a city page for its download anchors and
// maps each recognized format token to its absolute URL. Checksum,
// poly and other auxiliary files are ignored.
func parseDownloadLinks(city, pageURL string, body []byte) (map[string]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	formats := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "download_link") {
			if href := attr(n, "href"); href != "" {
				filename := path.Base(href)
				if format, ok := formatOf(city, filename); ok {
					formats[format] = resolveRef(pageURL, href)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return formats, nil
}

// formatOf derives the canonical format token from a download
// filename: "Leeds.osm.garmin-osm.zip" yields ".garmin-osm.zip".
func formatOf(city, filename string) (string, bool) {
	rest, ok := strings.CutPrefix(filename, city+".osm")
	if !ok {
		return "", false
	}
	for _, f := range fileFormats {
		if rest == f {
			return f, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
