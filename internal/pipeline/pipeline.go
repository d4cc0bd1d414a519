// Package pipeline orchestrates one synchronization run: load records (cache
// or fetch), classify, then dispatch the requested category stages in their
// fixed order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/auth"
	"github.com/lfreitas-dev/hrbridge/internal/cache"
	"github.com/lfreitas-dev/hrbridge/internal/classify"
	"github.com/lfreitas-dev/hrbridge/internal/dispatch"
	"github.com/lfreitas-dev/hrbridge/internal/feed"
	"github.com/lfreitas-dev/hrbridge/internal/store"
)

// StagePause is the flat delay between consecutive dispatch stages, easing
// pressure on the target's import queue.
const StagePause = time.Second

// Stage names one dispatch step of a run.
type Stage string

const (
	StageRoles        Stage = "roles"
	StageDepartments  Stage = "departments"
	StageEmployees    Stage = "employees"
	StageVacations    Stage = "vacations"
	StageLeaves       Stage = "leaves"
	StageTerminations Stage = "terminations"
)

// AllStages is the fixed execution order. The role and department catalogs go
// first so employee rows reference catalog entries the target already knows,
// and employees precede absences and terminations for the same reason.
var AllStages = []Stage{
	StageRoles, StageDepartments, StageEmployees,
	StageVacations, StageLeaves, StageTerminations,
}

// Upload filenames presented to the target import.
const (
	fileRoles       = "cargos.csv"
	fileDepartments = "departamentos.csv"
	fileEmployees   = "funcionarios.csv"
	fileVacations   = "ferias.csv"
	fileLeaves      = "afastamentos.csv"
)

// Sleeper abstracts the inter-stage pacing delay.
type Sleeper interface {
	Sleep(d time.Duration)
}

type stdSleeper struct{}

func (stdSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Runner wires the sync components together. Fetcher.Token and
// CatalogLoader.Token are resolved from Tokens right before use; the zero
// values of the optional fields (Sleeper, Now, Log) get sane defaults.
type Runner struct {
	Tokens  *auth.SourceTokenProvider
	Fetcher *feed.Fetcher
	Catalog *feed.CatalogLoader
	Cache   *cache.RecordCache
	Store   *store.Store
	REST    *dispatch.RESTClient
	Sender  *dispatch.TerminationSender

	KeyField  string
	ReportDir string
	Sleeper   Sleeper
	Now       func() time.Time
	Log       *slog.Logger
}

// Run executes the requested stages in the fixed order, skipping the rest.
// Stage failures are recorded and do not stop later stages; the returned
// error joins them so the caller still exits non-zero. The report is always
// returned, and persisted when ReportDir is set.
func (r *Runner) Run(ctx context.Context, stages []Stage) (*Report, error) {
	log := r.logger()
	report := NewReport(r.now())

	requested := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		requested[s] = true
	}

	records, fromCache, err := r.loadRecords(ctx)
	if err != nil {
		report.finish(r.now(), err)
		r.persistReport(report, log)
		return report, err
	}
	report.SourceRecords = len(records)
	report.CacheHit = fromCache

	classifier := &classify.Classifier{
		KeyField: r.KeyField,
		Log:      log,
	}
	if requested[StageLeaves] {
		classifier.Catalog = r.loadCatalog(ctx)
	}
	result := classifier.Classify(records)

	var errs []error
	ran := 0
	for _, stage := range AllStages {
		if !requested[stage] {
			continue
		}
		if ran > 0 {
			r.sleeper().Sleep(StagePause)
		}
		ran++

		sr := r.runStage(ctx, stage, records, result)
		report.Stages = append(report.Stages, sr)
		if sr.Error != "" {
			errs = append(errs, fmt.Errorf("stage %s: %s", stage, sr.Error))
		}
	}

	err = errors.Join(errs...)
	report.finish(r.now(), err)
	r.persistReport(report, log)
	return report, err
}

// loadRecords serves the company-filtered record set from the cache, fetching
// and caching the raw feed on a miss.
func (r *Runner) loadRecords(ctx context.Context) (records []feed.EmployeeRecord, fromCache bool, err error) {
	log := r.logger()

	if cached, ok := r.Cache.Get(ctx); ok {
		log.Info("serving records from cache", "records", len(cached))
		return cached, true, nil
	}

	token, err := r.Tokens.Token(ctx)
	if err != nil {
		return nil, false, err
	}
	r.Fetcher.Token = token

	fetched, err := r.Fetcher.FetchAll(ctx)
	if err != nil {
		return nil, false, err
	}
	// An empty fetch is usually a wholly failed transport, not an empty
	// workforce. Caching it would serve zero records for the whole TTL and
	// mask the source's recovery, so only non-empty results are cached.
	if len(fetched) == 0 {
		log.Warn("fetch returned no records, skipping cache write")
		return nil, false, nil
	}
	if err := r.Cache.Set(ctx, fetched); err != nil {
		log.Warn("snapshot write failed, continuing with in-memory records", "error", err)
	}
	return r.Cache.FilterAllowed(fetched), false, nil
}

// loadCatalog resolves the situation catalog. Failures degrade to an empty
// catalog; leave labels fall back to generic ones.
func (r *Runner) loadCatalog(ctx context.Context) feed.Catalog {
	if r.Catalog == nil {
		return feed.Catalog{}
	}
	if token, err := r.Tokens.Token(ctx); err == nil {
		r.Catalog.Token = token
	}
	return r.Catalog.Load(ctx)
}

func (r *Runner) runStage(ctx context.Context, stage Stage, records []feed.EmployeeRecord, result classify.Result) StageResult {
	start := r.now()
	sr := StageResult{Stage: stage}

	switch stage {
	case StageRoles:
		header, rows := classify.RoleTable(records)
		sr = r.upload(ctx, stage, dispatch.PageRoles, fileRoles, header, rows)
	case StageDepartments:
		header, rows := classify.DepartmentTable(records)
		sr = r.upload(ctx, stage, dispatch.PageDepartments, fileDepartments, header, rows)
	case StageEmployees:
		header, rows := classify.EmployeeTable(result.Active)
		sr = r.upload(ctx, stage, dispatch.PageEmployees, fileEmployees, header, rows)
	case StageVacations:
		header, rows := classify.AbsenceTable(result.Vacations)
		sr = r.upload(ctx, stage, dispatch.PageAbsences, fileVacations, header, rows)
	case StageLeaves:
		header, rows := classify.AbsenceTable(result.Leaves)
		sr = r.upload(ctx, stage, dispatch.PageAbsences, fileLeaves, header, rows)
	case StageTerminations:
		sr = r.sendTerminations(ctx, result.Terminations)
	}

	sr.Duration = r.now().Sub(start)
	return sr
}

// upload runs one CSV import stage. An empty table is a successful no-op; the
// target treats re-imports as overwrites, so there is no dedup here.
func (r *Runner) upload(ctx context.Context, stage Stage, page, filename string, header []string, rows [][]string) StageResult {
	log := r.logger()
	sr := StageResult{Stage: stage, Records: len(rows)}

	if len(rows) == 0 {
		log.Info("stage has no records, skipping upload", "stage", string(stage))
		return sr
	}

	res, err := r.REST.Upload(ctx, page, filename, dispatch.Table{Header: header, Rows: rows})
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Sent = len(rows)
	sr.Accepted = res.Accepted
	return sr
}

// sendTerminations batch-filters already-delivered events against the ledger
// and hands the remainder to the per-record SOAP sender.
func (r *Runner) sendTerminations(ctx context.Context, events []classify.TerminationEvent) StageResult {
	log := r.logger()
	sr := StageResult{Stage: StageTerminations, Records: len(events)}

	if len(events) == 0 {
		log.Info("no termination events to deliver")
		return sr
	}
	if r.Sender == nil {
		sr.Error = "termination endpoint not configured"
		return sr
	}

	delivered, err := r.Store.DeliveredSet(ctx)
	if err != nil {
		// The sender re-checks each event individually; a failed batch read
		// only costs those lookups.
		log.Warn("ledger batch read failed, relying on per-event checks", "error", err)
		delivered = nil
	}

	var pending []dispatch.Termination
	for _, ev := range events {
		key := store.DeliveryKey{EmployeeNo: ev.EmployeeNo, EventDate: ev.Date}
		if _, ok := delivered[key]; ok {
			sr.Skipped++
			continue
		}
		pending = append(pending, dispatch.Termination{
			EmployeeNo: ev.EmployeeNo,
			Date:       ev.Date,
			FullName:   ev.FullName,
		})
	}
	log.Info("termination batch filtered",
		"events", len(events), "already_delivered", sr.Skipped, "pending", len(pending))

	rep := r.Sender.SendAll(ctx, pending)
	sr.Sent = rep.Sent
	sr.Skipped += rep.Skipped
	sr.Failed = rep.Failed
	sr.Failures = rep.Failures
	if rep.Failed > 0 {
		sr.Error = fmt.Sprintf("%d of %d termination events failed", rep.Failed, len(pending))
	}
	return sr
}

func (r *Runner) persistReport(report *Report, log *slog.Logger) {
	if r.ReportDir == "" {
		return
	}
	path, err := report.WriteFile(r.ReportDir)
	if err != nil {
		log.Warn("run report write failed", "error", err)
		return
	}
	log.Info("run report written", "path", path)
}

func (r *Runner) sleeper() Sleeper {
	if r.Sleeper != nil {
		return r.Sleeper
	}
	return stdSleeper{}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
