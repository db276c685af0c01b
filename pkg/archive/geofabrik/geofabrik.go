// Package geofabrik scrapes Geofabrik's free download server: the
// official download index, the per-page subregion tables and the raw
// directory listings.
package geofabrik

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"osmgrab/pkg/archive"
)

const (
	// BaseURL is the homepage of the free download server.
	BaseURL = "https://download.geofabrik.de/"
	// IndexURL is the official machine-readable index of all downloads.
	IndexURL = BaseURL + "index-v1.json"
)

// jsonFormatKeys maps the index's url keys to canonical format tokens.
// Keys not listed here (history, taginfo, updates) are not downloadable
// extracts.
var jsonFormatKeys = map[string]string{
	"pbf": ".osm.pbf",
	"shp": ".shp.zip",
	"bz2": ".osm.bz2",
}

// Getter fetches one URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client lists Geofabrik's catalog. The download index is fetched once
// and reused across calls.
type Client struct {
	getter Getter

	mu  sync.Mutex
	idx *downloadIndex
}

// New builds a Client on top of an HTTP getter.
func New(getter Getter) *Client {
	return &Client{getter: getter}
}

// Profile describes the server for the resolver and planner.
func (c *Client) Profile() archive.Profile {
	return archive.Profile{
		Name:              "Geofabrik",
		LongName:          "Geofabrik OpenStreetMap data extracts",
		URL:               BaseURL,
		FileFormats:       []string{".osm.pbf", ".shp.zip", ".osm.bz2"},
		DownloadDir:       "osm_data/geofabrik",
		DuplicateSuffix:   " (US)",
		DuplicateIDPrefix: "us/",
		MirrorURLPath:     true,
	}
}

// RootListings scrapes the homepage's subregion tables, one row per
// continent.
func (c *Client) RootListings(ctx context.Context) ([]archive.Listing, error) {
	return c.listPage(ctx, BaseURL)
}

// ListChildren scrapes the listing's own page. A page without
// subregion tables is a leaf.
func (c *Client) ListChildren(ctx context.Context, l archive.Listing) ([]archive.Listing, error) {
	if l.PageURL == "" {
		return nil, nil
	}
	return c.listPage(ctx, l.PageURL)
}

func (c *Client) listPage(ctx context.Context, pageURL string) ([]archive.Listing, error) {
	idx, err := c.index(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.getter.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	var listings []archive.Listing
	subregionTables(doc).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr[onmouseover]").Each(func(_ int, tr *goquery.Selection) {
			l, ok := parseSubregionRow(tr, pageURL)
			if !ok {
				return
			}
			l.ID = idx.idFor(l)
			listings = append(listings, l)
		})
	})
	return listings, nil
}

var subregionTableID = regexp.MustCompile(`^(special)?subregions$`)

func subregionTables(doc *goquery.Document) *goquery.Selection {
	return doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return subregionTableID.MatchString(id)
	})
}

// parseSubregionRow reads one table row: the td with class "subregion"
// names the area and links its page, the remaining link cells carry
// the downloads, classified by filename suffix.
func parseSubregionRow(tr *goquery.Selection, pageURL string) (archive.Listing, bool) {
	nameCell := tr.Find("td.subregion a").First()
	name := strings.TrimSpace(nameCell.Text())
	if name == "" {
		return archive.Listing{}, false
	}

	l := archive.Listing{
		Name:    name,
		Formats: make(map[string]string),
	}
	if href, ok := nameCell.Attr("href"); ok {
		l.PageURL = resolveRef(pageURL, href)
	}
	tr.Find("td a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolveRef(pageURL, href)
		switch {
		case strings.HasSuffix(abs, ".osm.pbf"):
			l.Formats[".osm.pbf"] = abs
		case strings.HasSuffix(abs, ".shp.zip"):
			l.Formats[".shp.zip"] = abs
		case strings.HasSuffix(abs, ".osm.bz2"):
			l.Formats[".osm.bz2"] = abs
		}
	})
	return l, true
}

// indexRecord is one feature of the official download index.
type indexRecord struct {
	id     string
	parent string
	name   string
	urls   map[string]string
}

type downloadIndex struct {
	byPBF  map[string]string
	byName map[string]string
	byID   map[string]indexRecord
}

func (c *Client) index(ctx context.Context) (*downloadIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx != nil {
		return c.idx, nil
	}

	body, err := c.getter.Get(ctx, IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetching download index: %w", err)
	}
	idx, err := parseDownloadIndex(body)
	if err != nil {
		return nil, err
	}
	c.idx = idx
	return idx, nil
}

func parseDownloadIndex(body []byte) (*downloadIndex, error) {
	features := gjson.GetBytes(body, "features")
	if !features.Exists() {
		return nil, fmt.Errorf("download index has no features")
	}

	idx := &downloadIndex{
		byPBF:  make(map[string]string),
		byName: make(map[string]string),
		byID:   make(map[string]indexRecord),
	}
	features.ForEach(func(_, feature gjson.Result) bool {
		props := feature.Get("properties")
		rec := indexRecord{
			id:     props.Get("id").String(),
			parent: props.Get("parent").String(),
			name:   cleanIndexName(props.Get("name").String()),
			urls:   make(map[string]string),
		}
		props.Get("urls").ForEach(func(key, value gjson.Result) bool {
			if format, ok := jsonFormatKeys[key.String()]; ok && value.String() != "" {
				rec.urls[format] = value.String()
			}
			return true
		})
		if rec.id == "" {
			return true
		}
		idx.byID[rec.id] = rec
		if pbf := rec.urls[".osm.pbf"]; pbf != "" {
			idx.byPBF[pbf] = rec.id
		}
		if _, taken := idx.byName[strings.ToLower(rec.name)]; !taken {
			idx.byName[strings.ToLower(rec.name)] = rec.id
		}
		return true
	})
	return idx, nil
}

// idFor matches a scraped listing to its index id, preferring the
// unambiguous pbf URL over the display name.
func (x *downloadIndex) idFor(l archive.Listing) string {
	if id, ok := x.byPBF[l.Formats[".osm.pbf"]]; ok {
		return id
	}
	return x.byName[strings.ToLower(l.Name)]
}

// cleanIndexName normalizes a raw index name: line breaks become
// spaces, and "us/"-prefixed names are rewritten to their title-cased
// state name.
func cleanIndexName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "<br />", " "))
	if rest, ok := strings.CutPrefix(name, "us/"); ok {
		return titleCase(rest)
	}
	return name
}

func titleCase(s string) string {
	prev := rune(' ')
	return strings.Map(func(r rune) rune {
		if !unicode.IsLetter(prev) {
			r = unicode.ToUpper(r)
		} else {
			r = unicode.ToLower(r)
		}
		prev = r
		return r
	}, s)
}

// DirEntry is one row of a raw directory index: a downloadable file
// with its published date and size.
type DirEntry struct {
	File string
	URL  string
	Date string
	Size string
}

// DirectoryIndex lists the files under a (sub)region's directory page,
// e.g. "https://download.geofabrik.de/europe/great-britain.html".
func (c *Client) DirectoryIndex(ctx context.Context, pageURL string) ([]DirEntry, error) {
	body, err := c.getter.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	var entries []DirEntry
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := table.Find("th").Map(func(_ int, th *goquery.Selection) string {
			return strings.ToLower(strings.TrimSpace(th.Text()))
		})
		if !contains(headers, "file") {
			return true
		}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			tds := tr.Find("td")
			if tds.Length() == 0 {
				return
			}
			a := tds.First().Find("a").First()
			file := strings.TrimSpace(a.Text())
			href, _ := a.Attr("href")
			if file == "" || strings.HasPrefix(href, "..") {
				return
			}
			e := DirEntry{File: file, URL: resolveRef(pageURL, href)}
			if tds.Length() > 1 {
				e.Date = strings.TrimSpace(tds.Eq(1).Text())
			}
			if tds.Length() > 2 {
				e.Size = strings.TrimSpace(tds.Eq(2).Text())
			}
			entries = append(entries, e)
		})
		return false
	})
	if entries == nil {
		return nil, fmt.Errorf("no directory index found at %s", pageURL)
	}
	return entries, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
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
