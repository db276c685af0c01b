// Package planner turns resolved area names into concrete download
// plans and carries them out against the local filesystem.
package planner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"osmgrab/internal/utils"
	"osmgrab/pkg/archive"
	"osmgrab/pkg/catalog"
	"osmgrab/pkg/match"
)

// Action classifies a whole request after comparing it with what is
// already on disk.
type Action string

const (
	// ActionNone means everything requested is already present and no
	// refresh was asked for.
	ActionNone Action = ""
	// ActionUpdate means everything is present but a refresh was asked
	// for, so every file gets re-fetched.
	ActionUpdate Action = "update"
	// ActionDownload means at least one file is missing and only the
	// missing ones get fetched.
	ActionDownload Action = "download"
	// ActionDownloadUpdate means some files are missing and a refresh
	// was asked for, so everything gets fetched.
	ActionDownloadUpdate Action = "download/update"
)

// ItemAction is the per-file decision inside a plan.
type ItemAction string

const (
	ItemSkip     ItemAction = "skip"
	ItemDownload ItemAction = "download"
	ItemUpdate   ItemAction = "update"
)

// FormatUnavailableError reports an area that publishes neither the
// requested format nor any subregions to fall back to.
type FormatUnavailableError struct {
	Area   string
	Format string
}

func (e *FormatUnavailableError) Error() string {
	return fmt.Sprintf("%s data is unavailable for %s", e.Format, e.Area)
}

// Fetcher downloads a single URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) error
}

// Options tunes a Planner. The zero value is usable.
type Options struct {
	// DownloadDir overrides the archive's default download directory.
	DownloadDir string
	// Interval is the pause between consecutive fetches.
	Interval time.Duration
	// Confirm gates actions that touch the network or overwrite files.
	// Nil means everything is confirmed.
	Confirm archive.ConfirmFunc
	// Log receives progress and failure messages. Nil means the shared
	// logger.
	Log logrus.FieldLogger
}

// Assessment is the read-only comparison of a request against the
// local filesystem. Building one never touches the network.
type Assessment struct {
	Areas           []string
	Format          string
	Action          Action
	ConfirmRequired bool
	ToFetch         []string
	Existing        []string
	Dir             string
	Refresh         bool
	Deep            bool
}

// PlanItem is one file the plan accounts for.
type PlanItem struct {
	Area   string
	Format string
	URL    string
	Dest   string
	Action ItemAction
}

// Failure records an area the plan could not cover.
type Failure struct {
	Area   string
	Format string
	Err    error
}

// Plan is an executable set of per-file decisions.
type Plan struct {
	Items    []PlanItem
	Failures []Failure
	BaseDir  string
}

// Planner plans and executes downloads for one archive's catalog
// snapshot. It is safe for sequential reuse; the catalog snapshot it
// was built with is never mutated.
type Planner struct {
	profile archive.Profile
	hier    *catalog.Hierarchy
	index   *catalog.Index
	areas   *match.Matcher
	formats *match.Matcher
	fetcher Fetcher
	opts    Options
	log     logrus.FieldLogger

	// lastDir remembers where the most recent request put its files.
	lastDir string
}

// New builds a Planner over a catalog snapshot.
func New(profile archive.Profile, h *catalog.Hierarchy, ix *catalog.Index, fetcher Fetcher, opts Options) *Planner {
	if opts.Confirm == nil {
		opts.Confirm = archive.ConfirmAll
	}
	log := opts.Log
	if log == nil {
		log = utils.Log
	}
	return &Planner{
		profile: profile,
		hier:    h,
		index:   ix,
		areas: match.NewAreaMatcher(ix.Names(),
			match.WithAbbreviation(`(?i)^usa?$`, "United States of America")),
		formats: match.NewFormatMatcher(profile.FileFormats),
		fetcher: fetcher,
		opts:    opts,
		log:     log,
	}
}

// ResolveArea maps a loosely specified name to its canonical form.
func (p *Planner) ResolveArea(name string) (string, error) {
	return p.areas.Resolve(name)
}

// ResolveFormat maps a format token to its canonical form.
func (p *Planner) ResolveFormat(format string) (string, error) {
	return p.formats.Resolve(format)
}

// Subregions lists the direct children of an area, or with deep every
// leaf underneath it. The name is resolved first.
func (p *Planner) Subregions(name string, deep bool) ([]string, error) {
	canonical, err := p.ResolveArea(name)
	if err != nil {
		return nil, err
	}
	return p.hier.Subregions(canonical, deep)
}

// LastDownloadDir reports where the most recent executed plan put its
// files, empty before the first execution.
func (p *Planner) LastDownloadDir() string {
	return p.lastDir
}

// Assess resolves the request and compares it against the filesystem.
// All unresolvable inputs are reported together. The filesystem is
// consulted fresh on every call.
func (p *Planner) Assess(names []string, format, dir string, refresh, deep bool) (*Assessment, error) {
	canonicalFormat, err := p.ResolveFormat(format)
	if err != nil {
		return nil, err
	}

	var (
		areas []string
		errs  []error
	)
	for _, name := range names {
		canonical, err := p.ResolveArea(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		areas = append(areas, canonical)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	areas = utils.Dedupe(areas)

	a := &Assessment{
		Areas:   areas,
		Format:  canonicalFormat,
		Dir:     dir,
		Refresh: refresh,
		Deep:    deep,
	}
	for _, area := range areas {
		if dest, ok := p.existingPath(area, canonicalFormat, dir); ok {
			a.Existing = append(a.Existing, dest)
		} else {
			a.ToFetch = append(a.ToFetch, area)
		}
	}

	switch {
	case len(a.ToFetch) == 0 && !refresh:
		a.Action = ActionNone
	case len(a.ToFetch) == 0 && refresh:
		a.Action = ActionUpdate
		a.ConfirmRequired = true
		a.ToFetch = append([]string(nil), areas...)
	case len(a.ToFetch) == len(areas) || !refresh:
		a.Action = ActionDownload
		a.ConfirmRequired = true
	default:
		a.Action = ActionDownloadUpdate
		a.ConfirmRequired = true
		a.ToFetch = append([]string(nil), areas...)
	}
	return a, nil
}

func (p *Planner) existingPath(area, format, dir string) (string, bool) {
	rawURL, ok := p.index.URL(area, format)
	if !ok {
		return "", false
	}
	dest := p.destPath(area, rawURL, dir)
	if dest == "" {
		return "", false
	}
	if _, err := os.Stat(dest); err != nil {
		return "", false
	}
	return dest, true
}

// BuildPlan expands an assessment into per-file decisions. Areas that
// do not publish the requested format cascade into their subregions,
// gated by the confirm hook; leaves with nothing to cascade into are
// recorded as failures. BuildPlan touches the filesystem but never the
// network.
func (p *Planner) BuildPlan(a *Assessment) *Plan {
	plan := &Plan{BaseDir: a.Dir}
	p.extendPlan(plan, a, true, make(map[string]struct{}))
	return plan
}

func (p *Planner) extendPlan(plan *Plan, a *Assessment, confirmCascade bool, cascaded map[string]struct{}) {
	for _, area := range a.Areas {
		rawURL, ok := p.index.URL(area, a.Format)
		if !ok {
			p.cascade(plan, a, area, confirmCascade, cascaded)
			continue
		}

		dest := p.destPath(area, rawURL, a.Dir)
		action := ItemDownload
		if _, err := os.Stat(dest); err == nil {
			if a.Refresh {
				action = ItemUpdate
			} else {
				action = ItemSkip
			}
		}
		plan.Items = append(plan.Items, PlanItem{
			Area:   area,
			Format: a.Format,
			URL:    rawURL,
			Dest:   dest,
			Action: action,
		})
	}
}

// cascade substitutes an area with its subregions. The cascaded set
// caps each area at one expansion per plan, so a hierarchy carrying a
// cyclic edge terminates instead of recursing forever.
func (p *Planner) cascade(plan *Plan, a *Assessment, area string, confirm bool, cascaded map[string]struct{}) {
	if _, seen := cascaded[area]; seen {
		p.log.Debugf("%q already expanded in this plan, not expanding again", area)
		return
	}
	cascaded[area] = struct{}{}

	p.log.Infof("The %s data is not directly available for %q", a.Format, area)
	if confirm && !p.opts.Confirm("Try to download the data of its subregions instead\n?") {
		p.log.Infof("Skipping %q", area)
		return
	}

	subs, err := p.hier.Subregions(area, a.Deep)
	if err != nil {
		plan.Failures = append(plan.Failures, Failure{Area: area, Format: a.Format, Err: err})
		return
	}
	if len(subs) == 0 {
		plan.Failures = append(plan.Failures, Failure{
			Area:   area,
			Format: a.Format,
			Err:    &FormatUnavailableError{Area: area, Format: a.Format},
		})
		return
	}

	sub := &Assessment{
		Areas:   subs,
		Format:  a.Format,
		Dir:     p.subDownloadDir(area, a.Format, a.Dir),
		Refresh: a.Refresh,
		Deep:    a.Deep,
	}
	p.extendPlan(plan, sub, false, cascaded)
}

// Execute carries a plan out. Fetch failures are logged and their
// files omitted from the result; the remaining items still run.
// Cancellation is honored between items. The returned paths cover
// every file the plan accounts for that exists afterwards, skipped
// ones included.
func (p *Planner) Execute(ctx context.Context, plan *Plan) []string {
	var paths []string
	fetched := false
	for _, item := range plan.Items {
		if ctx.Err() != nil {
			p.log.Warnf("Download interrupted: %v", ctx.Err())
			break
		}
		if item.Action == ItemSkip {
			p.log.Debugf("%q is already available at %q", item.Area, item.Dest)
			paths = append(paths, item.Dest)
			continue
		}

		if fetched && p.opts.Interval > 0 {
			select {
			case <-ctx.Done():
				p.log.Warnf("Download interrupted: %v", ctx.Err())
				return paths
			case <-time.After(p.opts.Interval):
			}
		}
		fetched = true

		verb := "Downloading"
		if item.Action == ItemUpdate {
			verb = "Updating"
		}
		p.log.Infof("%s %q to %q", verb, filepath.Base(item.Dest), filepath.Dir(item.Dest))
		if err := p.fetcher.Fetch(ctx, item.URL, item.Dest); err != nil {
			p.log.Errorf("Failed to download %s data of %q: %v", item.Format, item.Area, err)
			continue
		}
		paths = append(paths, item.Dest)
	}

	for _, f := range plan.Failures {
		p.log.Warnf("%v", f.Err)
	}
	p.lastDir = plan.BaseDir
	if plan.BaseDir == "" {
		p.lastDir = p.profile.DownloadDir
	}
	return paths
}

// Download is the assess, confirm, plan, execute pipeline in one call.
// It returns the local paths of every requested file that exists when
// it is done.
func (p *Planner) Download(ctx context.Context, names []string, format, dir string, refresh, deep bool) ([]string, error) {
	a, err := p.Assess(names, format, dir, refresh, deep)
	if err != nil {
		return nil, err
	}
	if a.Action == ActionNone {
		p.log.Infof("The %s data of the requested (sub)region(s) is already available", a.Format)
		return a.Existing, nil
	}
	if a.ConfirmRequired {
		prompt := fmt.Sprintf("To %s %s data of the following geographic (sub)region(s):\n\t%s\n?",
			a.Action, a.Format, strings.Join(a.ToFetch, "\n\t"))
		if !p.opts.Confirm(prompt) {
			p.log.Infof("Cancelled")
			return a.Existing, nil
		}
	}
	plan := p.BuildPlan(a)
	return p.Execute(ctx, plan), nil
}
