// Package bulkvalidate implements the Bulk Validator: large-population
// compliance sweeps with adaptive batching, progress reporting, and
// cooperative cancellation. Each employee in a batch is evaluated through
// compliance.Engine.ValidateOne, which loads that employee's shifts and
// activity from the Gateway itself; there is no batch-wide preload.
package bulkvalidate

import (
	"context"
	"time"

	"github.com/flyingrobots/wfm-core/internal/compliance"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"go.uber.org/zap"
)

// batchPlan is the adaptive-batching table of spec.md §4.D: as the
// population grows, batches grow and per-batch concurrency grows with
// them, up to a ceiling that keeps Gateway connection pools from being
// overrun.
var batchPlan = []struct {
	maxPopulation int
	batchSize     int
	concurrency   int
}{
	{maxPopulation: 100, batchSize: 25, concurrency: 4},
	{maxPopulation: 1000, batchSize: 50, concurrency: 8},
	{maxPopulation: 1 << 62, batchSize: 100, concurrency: 12},
}

func planFor(population int) (batchSize, concurrency int) {
	for _, p := range batchPlan {
		if population <= p.maxPopulation {
			return p.batchSize, p.concurrency
		}
	}
	last := batchPlan[len(batchPlan)-1]
	return last.batchSize, last.concurrency
}

const (
	perBatchTimeout    = 30 * time.Second
	perEmployeeTimeout = 5 * time.Second
)

// Progress is a snapshot emitted after each batch completes.
type Progress struct {
	Total     int
	Processed int
	Compliant int
	Violation int
	Elapsed   time.Duration
	ETA       time.Duration
}

// Report is the final outcome of Run.
type Report struct {
	Progress
	Results   []compliance.Result
	Errors    []error
	Cancelled bool
}

// ProgressFunc receives a Progress snapshot after every batch; nil is
// accepted for callers that don't want updates.
type ProgressFunc func(Progress)

// Validator drives batch compliance sweeps over a Gateway-backed
// compliance.Engine.
type Validator struct {
	engine *compliance.Engine
	log    *zap.Logger
}

// NewValidator wires a compliance.Engine into a ready-to-use Validator.
func NewValidator(engine *compliance.Engine, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{engine: engine, log: log}
}

// Run validates employeeIDs over r in adaptively-sized batches,
// reporting progress after each batch and returning a partial Report
// (with Cancelled set) if ctx is cancelled mid-sweep.
func (v *Validator) Run(ctx context.Context, employeeIDs []string, r gateway.Range, onProgress ProgressFunc) Report {
	started := time.Now()
	batchSize, concurrency := planFor(len(employeeIDs))

	report := Report{Progress: Progress{Total: len(employeeIDs)}}

	for start := 0; start < len(employeeIDs); start += batchSize {
		select {
		case <-ctx.Done():
			report.Cancelled = true
			return report
		default:
		}

		end := start + batchSize
		if end > len(employeeIDs) {
			end = len(employeeIDs)
		}
		batch := employeeIDs[start:end]

		batchCtx, cancel := context.WithTimeout(ctx, perBatchTimeout)
		results, errs := v.runBatch(batchCtx, batch, r, concurrency)
		cancel()

		for _, res := range results {
			report.Results = append(report.Results, res)
			if res.Compliant {
				report.Compliant++
			}
			report.Violation += len(res.Violations)
		}
		report.Errors = append(report.Errors, errs...)
		report.Processed += len(batch)
		report.Elapsed = time.Since(started)

		if report.Processed > 0 {
			perEmployee := report.Elapsed / time.Duration(report.Processed)
			report.ETA = perEmployee * time.Duration(report.Total-report.Processed)
		}

		if onProgress != nil {
			onProgress(report.Progress)
		}

		if ctx.Err() != nil {
			report.Cancelled = true
			return report
		}
	}

	return report
}

// runBatch evaluates one batch with bounded concurrency and a per-
// employee deadline, so one slow Gateway call cannot stall the whole
// batch past its own 30s ceiling.
func (v *Validator) runBatch(ctx context.Context, employeeIDs []string, r gateway.Range, concurrency int) ([]compliance.Result, []error) {
	type out struct {
		res compliance.Result
		err error
	}
	results := make([]out, len(employeeIDs))
	sem := make(chan struct{}, concurrency)
	done := make(chan int, len(employeeIDs))

	for i, id := range employeeIDs {
		go func(i int, id string) {
			sem <- struct{}{}
			defer func() { <-sem; done <- i }()
			empCtx, cancel := context.WithTimeout(ctx, perEmployeeTimeout)
			defer cancel()
			res, err := v.engine.ValidateOne(empCtx, id, r, true)
			results[i] = out{res: res, err: err}
		}(i, id)
	}
	for range employeeIDs {
		<-done
	}

	var out2 []compliance.Result
	var errs []error
	for _, o := range results {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		out2 = append(out2, o.res)
	}
	return out2, errs
}
