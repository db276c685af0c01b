package catalog

import "sort"

// Entry is the canonical catalog row for one area: its name, its page
// on the download server, and one download URL per published format.
type Entry struct {
	Area    string            `json:"area"`
	PageURL string            `json:"page_url,omitempty"`
	Formats map[string]string `json:"formats"`
}

// Index is the canonical area -> entry mapping for one archive, built
// once per catalog refresh and replaced wholesale, never mutated.
type Index struct {
	Entries map[string]Entry `json:"entries"`
}

// Entry returns the catalog entry for a canonical area name.
func (ix *Index) Entry(area string) (Entry, bool) {
	e, ok := ix.Entries[area]
	return e, ok
}

// URL returns the download URL for the given canonical area and format
// token. The second result is false when the server does not publish
// that format for the area; that is planning input, not an error.
func (ix *Index) URL(area, format string) (string, bool) {
	e, ok := ix.Entries[area]
	if !ok {
		return "", false
	}
	u, ok := e.Formats[format]
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

// Names returns every canonical area name, sorted. This is the
// candidate set handed to the name matcher.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.Entries))
	for n := range ix.Entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
