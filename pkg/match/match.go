// Package match resolves loosely specified area names and file format
// tokens to an archive's canonical vocabulary.
package match

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	// AreaThreshold is the minimum similarity an area name match must
	// reach before it is accepted.
	AreaThreshold = 0.4
	// FormatThreshold is the equivalent gate for file format tokens.
	// Tokens are short, so legitimate inputs score lower ("pbf" against
	// ".osm.pbf" is 0.375).
	FormatThreshold = 0.3
)

// UnresolvedNameError is returned when an input fails to match any
// available (sub)region name above the confidence threshold.
type UnresolvedNameError struct {
	Input string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("subregion name %q does not match any (sub)region available on the download server", e.Input)
}

// UnresolvedFormatError is returned when an input fails to match any
// file format the server publishes.
type UnresolvedFormatError struct {
	Input string
	Valid []string
}

func (e *UnresolvedFormatError) Error() string {
	return fmt.Sprintf("file format %q is unidentifiable; valid options: %s", e.Input, strings.Join(e.Valid, ", "))
}

// noiseRe strips filename noise left over from URLs and paths, e.g.
// "greater-london-latest" or "west-midlands-free".
var noiseRe = regexp.MustCompile(`-(latest|free)`)

type abbreviation struct {
	re        *regexp.Regexp
	canonical string
}

// Matcher resolves one kind of token against a fixed candidate set.
// It is immutable after construction and safe for repeated use.
type Matcher struct {
	candidates []string
	byLower    map[string]string
	threshold  float64
	abbrevs    []abbreviation
	stripPaths bool
	newErr     func(input string) error
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides the acceptance threshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithAbbreviation registers a well-known abbreviation: any input fully
// matching pattern resolves to canonical, provided canonical is in the
// candidate set.
func WithAbbreviation(pattern, canonical string) Option {
	return func(m *Matcher) {
		m.abbrevs = append(m.abbrevs, abbreviation{
			re:        regexp.MustCompile(pattern),
			canonical: canonical,
		})
	}
}

// WithPathStripping makes the matcher reduce path- or URL-shaped input
// to its base token before fuzzy matching.
func WithPathStripping() Option {
	return func(m *Matcher) { m.stripPaths = true }
}

func newMatcher(candidates []string, newErr func(string) error, opts ...Option) *Matcher {
	m := &Matcher{
		candidates: append([]string(nil), candidates...),
		byLower:    make(map[string]string, len(candidates)),
		threshold:  AreaThreshold,
		newErr:     newErr,
	}
	sort.Strings(m.candidates)
	for _, c := range m.candidates {
		m.byLower[strings.ToLower(c)] = c
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewAreaMatcher builds a matcher over (sub)region names. Failures are
// reported as *UnresolvedNameError.
func NewAreaMatcher(candidates []string, opts ...Option) *Matcher {
	return newMatcher(candidates, func(input string) error {
		return &UnresolvedNameError{Input: input}
	}, append([]Option{WithPathStripping()}, opts...)...)
}

// NewFormatMatcher builds a matcher over file format tokens. Failures
// are reported as *UnresolvedFormatError.
func NewFormatMatcher(candidates []string, opts ...Option) *Matcher {
	valid := append([]string(nil), candidates...)
	sort.Strings(valid)
	return newMatcher(candidates, func(input string) error {
		return &UnresolvedFormatError{Input: input, Valid: valid}
	}, append([]Option{WithThreshold(FormatThreshold)}, opts...)...)
}

// Candidates returns the canonical candidate set, sorted.
func (m *Matcher) Candidates() []string {
	return append([]string(nil), m.candidates...)
}

// Resolve maps input to a canonical candidate. Empty input and inputs
// scoring below the threshold against every candidate fail explicitly;
// Resolve never returns an empty string with a nil error.
func (m *Matcher) Resolve(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", m.newErr(input)
	}

	// Fast path: exact, case-insensitive membership.
	if canonical, ok := m.byLower[strings.ToLower(trimmed)]; ok {
		return canonical, nil
	}

	for _, a := range m.abbrevs {
		if a.re.MatchString(trimmed) {
			if _, ok := m.byLower[strings.ToLower(a.canonical)]; ok {
				return a.canonical, nil
			}
		}
	}

	stripped := trimmed
	if m.stripPaths && looksLikePath(trimmed) {
		stripped = baseToken(trimmed)
	}

	best, score := m.closest(stripped)
	if best == "" || score < m.threshold {
		return "", m.newErr(input)
	}
	return best, nil
}

func (m *Matcher) closest(input string) (string, float64) {
	var (
		best  string
		score float64
	)
	for _, c := range m.candidates {
		if s := Similarity(input, c); s > score {
			best, score = c, s
		}
	}
	return best, score
}

// Similarity is an edit-distance similarity on [0,1]: 1 minus the
// Levenshtein distance between the case-folded strings, normalized by
// the longer length. Identical non-empty strings score 1, disjoint
// ones 0. Two empty strings score 0; emptiness never counts as a
// match.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

func looksLikePath(s string) bool {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		return true
	}
	return strings.ContainsAny(s, `/\`)
}

// baseToken reduces a path or URL to the candidate-shaped part of its
// last element: "https://host/europe/great-britain.html" yields
// "great-britain", "x/rutland-latest.osm.pbf" yields "rutland".
func baseToken(s string) string {
	if u, err := url.Parse(s); err == nil && u.Path != "" && u.Host != "" {
		s = u.Path
	}
	s = strings.ReplaceAll(s, `\`, `/`)
	base := path.Base(s)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return noiseRe.ReplaceAllString(base, "")
}
