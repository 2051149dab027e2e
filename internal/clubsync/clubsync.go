// Package clubsync orchestrates the full federation club sync: committees
// index, per-department listings, detail sheets, merge, slug assignment,
// roster lists and the staged atomic publish of the whole dataset.
package clubsync

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/crawl"
	"github.com/echecs92/chess-sync/internal/extract"
	"github.com/echecs92/chess-sync/internal/fetch"
	"github.com/echecs92/chess-sync/internal/issue"
	"github.com/echecs92/chess-sync/internal/license"
	"github.com/echecs92/chess-sync/internal/limiter"
	"github.com/echecs92/chess-sync/internal/merge"
	"github.com/echecs92/chess-sync/internal/metrics"
	"github.com/echecs92/chess-sync/internal/roster"
	"github.com/echecs92/chess-sync/internal/storage"
)

const (
	clubsDir       = "clubs-france"
	publicDir      = "clubs-france-ffe"
	rostersDir     = "clubs-france-ffe-details"
	manifestFile   = "clubs-france.json"
	publicManifest = "clubs-france-ffe.json"

	timeFormat = "2006-01-02T15:04:05.000Z"
)

// DepartmentEntry is one department line of a dataset manifest.
type DepartmentEntry struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	File  string `json:"file"`
	Count int    `json:"count"`
}

// Manifest indexes one of the two per-department datasets.
type Manifest struct {
	Version     int               `json:"version"`
	Updated     string            `json:"updated"`
	BasePath    string            `json:"basePath"`
	Departments []DepartmentEntry `json:"departments"`
}

// publicListEntry is the projection of a normalized record published in the
// per-department public files.
type publicListEntry struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Commune    string `json:"commune"`
	PostalCode string `json:"postalCode"`
	Ref        string `json:"ref"`
}

// Options selects the sync mode.
type Options struct {
	// LicensesOnly patches licence counts into the already published
	// files instead of rebuilding the dataset.
	LicensesOnly bool
}

// Result summarizes a completed run.
type Result struct {
	Departments int
	Clubs       int
	Rosters     int
	Issues      int
}

// Runner drives the club sync end to end.
type Runner struct {
	cfg     config.Config
	client  *fetch.Client
	pager   *crawl.Pager
	rosters *roster.Fetcher
	issues  *issue.Log
	log     *zap.Logger
}

func NewRunner(cfg config.Config, client *fetch.Client, log *zap.Logger) *Runner {
	pager := crawl.New(client, time.Duration(cfg.Federation.PageDelayMs)*time.Millisecond)
	return &Runner{
		cfg:     cfg,
		client:  client,
		pager:   pager,
		rosters: roster.NewFetcher(pager, cfg.Federation.BaseURL, log),
		issues:  issue.NewLog(),
		log:     log,
	}
}

// deptData is everything assembled for one department before writing.
type deptData struct {
	dept   extract.Department
	base   []merge.Club
	public []merge.PublicClub
}

// includedClub is a club that survived the exclusion filter, in first-seen
// order across departments.
type includedClub struct {
	ref  string
	name string
}

// Run executes the sync. Only structural failures return an error; per-club
// and per-listing problems are recorded as issues and the run completes.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	exclusions, err := merge.NewExclusions(r.cfg.Exclude.Refs, r.cfg.Exclude.NamePatterns)
	if err != nil {
		return nil, err
	}

	departments, err := r.fetchDepartments(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Info("departments found", zap.Int("count", len(departments)))

	listings := r.fetchListings(ctx, departments)

	refs := collectRefs(departments, listings)
	r.log.Info("fetching club detail sheets", zap.Int("count", len(refs)))
	details := r.fetchDetails(ctx, refs)

	perDept, included := r.assemble(departments, listings, details, exclusions)

	if opts.LicensesOnly {
		if err := r.patchLicenses(perDept, details, listings); err != nil {
			return nil, err
		}
		r.issues.Report(r.log, 20)
		return &Result{Departments: len(departments), Clubs: len(included), Issues: r.issues.Count()}, nil
	}

	var all []*merge.PublicClub
	for _, data := range perDept {
		for i := range data.public {
			all = append(all, &data.public[i])
		}
	}
	merge.EnsureUniqueSlugs(all)
	metrics.CountRecords("club", len(all))

	staging, err := storage.NewStaging(r.cfg.Output.DataDir, r.log)
	if err != nil {
		return nil, err
	}
	defer staging.Cleanup()

	var rels []string
	for _, data := range perDept {
		baseRel := filepath.Join(clubsDir, data.dept.File)
		if err := staging.WriteJSON(baseRel, data.base); err != nil {
			return nil, err
		}
		publicRel := filepath.Join(publicDir, data.dept.File)
		if err := staging.WriteJSON(publicRel, projectPublic(data.public)); err != nil {
			return nil, err
		}
		rels = append(rels, baseRel, publicRel)
	}

	rosterRels, rosterCount := r.fetchRosters(ctx, included, staging)
	rels = append(rels, rosterRels...)

	updated := time.Now().UTC().Format(timeFormat)
	if err := staging.WriteJSON(manifestFile, r.manifest(perDept, updated, clubsDir, countBase)); err != nil {
		return nil, err
	}
	if err := staging.WriteJSON(publicManifest, r.manifest(perDept, updated, publicDir, countPublic)); err != nil {
		return nil, err
	}
	rels = append(rels, manifestFile, publicManifest)

	r.log.Info("publishing dataset", zap.String("run_id", staging.RunID()), zap.Int("files", len(rels)))
	if err := staging.Publish(rels); err != nil {
		return nil, fmt.Errorf("publish dataset: %w", err)
	}

	r.issues.Report(r.log, 20)
	return &Result{
		Departments: len(departments),
		Clubs:       len(all),
		Rosters:     rosterCount,
		Issues:      r.issues.Count(),
	}, nil
}

func (r *Runner) fetchDepartments(ctx context.Context) ([]extract.Department, error) {
	html, err := r.client.Text(ctx, r.cfg.Federation.BaseURL+"/Comites.aspx", fetch.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("committees index: %w", err)
	}
	departments := extract.ParseDepartments(html)
	if len(departments) == 0 {
		return nil, fmt.Errorf("committees index: no departments found")
	}
	return departments, nil
}

// fetchListings crawls every department's paginated club listing. A failed
// listing leaves that department empty and records an issue; the run goes
// on with the other departments.
func (r *Runner) fetchListings(ctx context.Context, departments []extract.Department) map[string][]extract.ClubListRow {
	start := time.Now()
	var pacer *rate.Limiter
	if r.cfg.Federation.ListDelayMs > 0 {
		pacer = rate.NewLimiter(rate.Every(time.Duration(r.cfg.Federation.ListDelayMs)*time.Millisecond), 1)
	}

	listings := make(map[string][]extract.ClubListRow, len(departments))
	for _, dept := range departments {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
		}
		listURL := r.cfg.Federation.BaseURL + "/ListeClubs.aspx?Action=CLUBCOMITE&ComiteRef=" + url.QueryEscape(dept.Code)
		pages, err := r.pager.Pages(ctx, listURL)
		if err != nil {
			r.issues.Addf(issue.CategoryFailed, dept.Code, "department listing failed", "%v", err)
			r.log.Warn("department listing failed", zap.String("dept", dept.Code), zap.Error(err))
			listings[dept.Code] = nil
			continue
		}
		var rows []extract.ClubListRow
		for _, page := range pages {
			rows = append(rows, extract.ParseClubList(page)...)
		}
		listings[dept.Code] = rows
		r.log.Info("department listing", zap.String("dept", dept.Code), zap.Int("clubs", len(rows)))
	}
	metrics.ObserveStage("club_listings", time.Since(start))
	return listings
}

// collectRefs returns each club ref once, in listing order.
func collectRefs(departments []extract.Department, listings map[string][]extract.ClubListRow) []string {
	seen := map[string]bool{}
	var refs []string
	for _, dept := range departments {
		for _, row := range listings[dept.Code] {
			if row.Ref == "" || seen[row.Ref] {
				continue
			}
			seen[row.Ref] = true
			refs = append(refs, row.Ref)
		}
	}
	return refs
}

// fetchDetails downloads every detail sheet through the bounded limiter. A
// sheet that fails after retries is downgraded to an empty placeholder so
// the club still appears in the dataset with its listing-row data.
func (r *Runner) fetchDetails(ctx context.Context, refs []string) map[string]extract.ClubDetail {
	start := time.Now()
	lim := limiter.New(r.cfg.Federation.DetailConcurrency)

	var mu sync.Mutex
	details := make(map[string]extract.ClubDetail, len(refs))

	waits := make([]<-chan error, len(refs))
	for i, ref := range refs {
		ref := ref
		waits[i] = lim.Submit(ctx, func(ctx context.Context) error {
			detailURL := r.cfg.Federation.BaseURL + "/FicheClub.aspx?Ref=" + url.QueryEscape(ref)
			html, err := r.client.Text(ctx, detailURL, fetch.DefaultOptions())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.issues.Addf(issue.CategoryFailed, ref, "detail sheet failed", "%v", err)
				details[ref] = extract.EmptyClubDetail(ref)
				return nil
			}
			details[ref] = extract.ParseClubDetails(html, ref)
			return nil
		})
	}
	for _, ch := range waits {
		<-ch
	}
	metrics.ObserveStage("club_details", time.Since(start))
	return details
}

// assemble pairs listing rows with their detail sheets into per-department
// record sets, applying the exclusion filter and the canonical orderings.
func (r *Runner) assemble(
	departments []extract.Department,
	listings map[string][]extract.ClubListRow,
	details map[string]extract.ClubDetail,
	exclusions *merge.Exclusions,
) ([]*deptData, []includedClub) {
	var perDept []*deptData
	var included []includedClub
	seen := map[string]bool{}

	for _, dept := range departments {
		data := &deptData{dept: dept}
		for _, row := range listings[dept.Code] {
			detail, ok := details[row.Ref]
			if !ok {
				detail = extract.EmptyClubDetail(row.Ref)
			}
			if exclusions.Excluded(detail, row) {
				r.log.Info("club excluded", zap.String("ref", row.Ref), zap.String("name", row.Name))
				continue
			}
			base, public := merge.BuildEntries(detail, row, dept)
			data.base = append(data.base, base)
			data.public = append(data.public, public)
			if public.Ref != "" && !seen[public.Ref] {
				seen[public.Ref] = true
				included = append(included, includedClub{ref: public.Ref, name: public.Name})
			}
		}
		merge.SortClubs(data.base)
		merge.SortPublicClubs(data.public)
		perDept = append(perDept, data)
	}
	return perDept, included
}

// fetchRosters downloads the six federation lists for every included club
// and stages one file per club. Partial list failures publish anyway with
// the error recorded in the payload.
func (r *Runner) fetchRosters(ctx context.Context, included []includedClub, staging *storage.Staging) ([]string, int) {
	start := time.Now()
	lim := limiter.New(r.cfg.Federation.RosterConcurrency)

	var mu sync.Mutex
	var rels []string

	waits := make([]<-chan error, len(included))
	for i, club := range included {
		club := club
		waits[i] = lim.Submit(ctx, func(ctx context.Context) error {
			doc, listErr := r.rosters.FetchClubLists(ctx, club.ref, club.name)
			if listErr != nil {
				r.issues.Add(issue.CategoryFailed, club.ref, "roster lists failed", strings.Join(listErr.Details, "; "))
			}
			if doc == nil {
				return nil
			}
			rel := filepath.Join(rostersDir, doc.Ref+".json")
			if err := staging.WriteJSON(rel, doc); err != nil {
				r.issues.Addf(issue.CategoryFailed, club.ref, "roster write failed", "%v", err)
				return nil
			}
			mu.Lock()
			rels = append(rels, rel)
			mu.Unlock()
			return nil
		})
	}
	for _, ch := range waits {
		<-ch
	}
	metrics.ObserveStage("club_rosters", time.Since(start))
	return rels, len(rels)
}

func countBase(d *deptData) int   { return len(d.base) }
func countPublic(d *deptData) int { return len(d.public) }

func (r *Runner) manifest(perDept []*deptData, updated, dir string, count func(*deptData) int) Manifest {
	m := Manifest{
		Version:  1,
		Updated:  updated,
		BasePath: r.cfg.Output.BasePath + dir + "/",
	}
	for _, data := range perDept {
		m.Departments = append(m.Departments, DepartmentEntry{
			Code:  data.dept.Code,
			Name:  data.dept.Name,
			Slug:  data.dept.Slug,
			File:  data.dept.File,
			Count: count(data),
		})
	}
	return m
}

// patchLicenses rewrites licence counts inside the already published base
// files, leaving every other field untouched. Fresh counts come from the
// detail sheets of the current crawl.
func (r *Runner) patchLicenses(perDept []*deptData, details map[string]extract.ClubDetail, listings map[string][]extract.ClubListRow) error {
	for _, data := range perDept {
		var fresh []extract.ClubDetail
		for _, row := range listings[data.dept.Code] {
			if detail, ok := details[row.Ref]; ok {
				fresh = append(fresh, detail)
			}
		}
		lookup := license.NewLookup(fresh)

		path := filepath.Join(r.cfg.Output.DataDir, clubsDir, data.dept.File)
		var records []map[string]any
		if err := storage.ReadJSON(path, &records); err != nil {
			if os.IsNotExist(err) {
				r.log.Warn("no published file to patch", zap.String("dept", data.dept.Code))
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		matched, changed := license.PatchRecords(records, lookup)
		if err := storage.WriteJSON(path, records); err != nil {
			return err
		}
		r.log.Info("licence counts patched",
			zap.String("dept", data.dept.Code),
			zap.Int("matched", matched),
			zap.Int("changed", changed))

		// The department 92 counts also live in the standalone legacy file.
		if data.dept.Code == "92" {
			if err := r.patchLegacyFile(lookup); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) patchLegacyFile(lookup *license.Lookup) error {
	path := filepath.Join(r.cfg.Output.DataDir, "clubs.json")
	var records []map[string]any
	if err := storage.ReadJSON(path, &records); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	matched, changed := license.PatchRecords(records, lookup)
	if err := storage.WriteJSON(path, records); err != nil {
		return err
	}
	r.log.Info("legacy licence counts patched", zap.Int("matched", matched), zap.Int("changed", changed))
	return nil
}

func projectPublic(clubs []merge.PublicClub) []publicListEntry {
	out := make([]publicListEntry, len(clubs))
	for i, club := range clubs {
		out[i] = publicListEntry{
			Slug:       club.Slug,
			Name:       club.Name,
			Commune:    club.Commune,
			PostalCode: club.PostalCode,
			Ref:        club.Ref,
		}
	}
	return out
}
