package planner

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// AreaDirname derives the per-area folder name from a canonical area
// name: "Greater London" -> "greater-london".
func AreaDirname(area string) string {
	fields := strings.Fields(strings.ToLower(area))
	for i, f := range fields {
		fields[i] = strings.Trim(f, punctuation)
	}
	return strings.Join(fields, "-")
}

// formatScopedDirname names the subdirectory that collects a cascade's
// files, scoped to the original area and format:
// ("Great Britain", ".shp.zip") -> "great-britain-shp-zip".
func formatScopedDirname(area, format string) string {
	s := strings.ToLower(area + format)
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// isFormatScopedDir reports whether dir already is a cascade directory
// for one of the known formats, in which case files are written into
// it directly instead of gaining another per-area level.
func isFormatScopedDir(dir string, formats []string) bool {
	base := filepath.Base(dir)
	for _, f := range formats {
		if strings.HasSuffix(base, strings.ReplaceAll(f, ".", "-")) {
			return true
		}
	}
	return false
}

// urlPathDir returns the directory part of a download URL's path with
// the leading slash removed, empty when the URL does not parse.
func urlPathDir(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	d := path.Dir(strings.TrimPrefix(u.Path, "/"))
	if d == "." {
		return ""
	}
	return d
}

// destPath computes where the artifact at rawURL for the given area
// belongs. With no explicit directory, the archive's default layout
// applies: Geofabrik mirrors the URL's directory structure, flat
// archives use a single per-area folder. An explicit directory gets a
// per-area folder, unless it is itself a cascade directory.
func (p *Planner) destPath(area, rawURL, dir string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	filename := path.Base(u.Path)

	if dir == "" {
		base := p.profile.DownloadDir
		if p.profile.MirrorURLPath {
			if sub := urlPathDir(rawURL); sub != "" {
				return filepath.Join(base, filepath.FromSlash(sub), AreaDirname(area), filename)
			}
		}
		return filepath.Join(base, AreaDirname(area), filename)
	}
	if isFormatScopedDir(dir, p.profile.FileFormats) {
		return filepath.Join(dir, filename)
	}
	return filepath.Join(dir, AreaDirname(area), filename)
}

// subDownloadDir names the directory a cascade downloads into, so that
// files from different original requests never collide.
func (p *Planner) subDownloadDir(area, format, dir string) string {
	sub := formatScopedDirname(area, format)
	if dir != "" {
		return filepath.Join(dir, sub)
	}

	base := p.profile.DownloadDir
	if p.profile.MirrorURLPath {
		// Mirror the area's own URL path, whichever format it does
		// publish.
		if e, ok := p.index.Entry(area); ok {
			for _, f := range p.formats.Candidates() {
				if rawURL, ok := e.Formats[f]; ok && rawURL != "" {
					if d := urlPathDir(rawURL); d != "" {
						return filepath.Join(base, filepath.FromSlash(d), AreaDirname(area), sub)
					}
					break
				}
			}
		}
	}
	return filepath.Join(base, sub)
}
