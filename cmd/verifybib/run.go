package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/verifybib/config"
	"github.com/c360studio/verifybib/metrics"
	"github.com/c360studio/verifybib/report"
	"github.com/c360studio/verifybib/source"
	"github.com/c360studio/verifybib/validation"
	"github.com/c360studio/verifybib/watch"
)

// errFindings makes the process exit with status 1 without an error line.
var errFindings = errors.New("findings reported")

// runner validates inputs and writes one report per input.
type runner struct {
	cfg       *config.Config
	validator *validation.Validator
	collector *metrics.Collector
	format    report.Format
	runID     string
	logger    *slog.Logger
	out       io.Writer
	jobs      int
	multi     bool
}

func newRunner(cfg *config.Config, runID string, jobs int, logger *slog.Logger, out io.Writer) (*runner, error) {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	v, err := validation.NewValidator(cfg.ValidatorOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	r := &runner{
		cfg:       cfg,
		validator: v,
		format:    format,
		runID:     runID,
		logger:    logger,
		out:       out,
		jobs:      jobs,
	}
	if cfg.Metrics.Textfile != "" {
		r.collector = metrics.NewCollector()
	}
	return r, nil
}

// result is one validated input whose report is already written.
type result struct {
	input  string
	report string
	store  *validation.Store
	doc    *source.Document
}

// checkAll runs every input once, up to r.jobs at a time. Summaries are
// printed in input order. It reports whether any run had findings.
func (r *runner) checkAll(ctx context.Context, inputs []string) (bool, error) {
	r.multi = len(inputs) > 1

	owners := make(map[string]string, len(inputs))
	for _, in := range inputs {
		out := reportPath(r.cfg.Output.Path, in, r.format, r.multi)
		if prev, ok := owners[out]; ok {
			return false, fmt.Errorf("inputs %s and %s would both write %s", prev, in, out)
		}
		owners[out] = in
	}

	jobs := r.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(inputs)))

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := r.validate(in)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	var dirty bool
	for _, res := range results {
		r.publish(res)
		if res.store.ErrorCount > 0 {
			dirty = true
		}
	}

	return dirty, r.flushMetrics()
}

// check validates one input and publishes the result.
func (r *runner) check(input string) error {
	res, err := r.validate(input)
	if err != nil {
		return err
	}
	r.publish(res)
	return nil
}

// validate runs the rules over one input and writes its report.
func (r *runner) validate(input string) (result, error) {
	store, doc := r.validator.CheckFile(input)

	out := reportPath(r.cfg.Output.Path, input, r.format, r.multi)
	data, err := report.Render(r.format, store, report.Meta{RunID: r.runID, Path: input})
	if err != nil {
		return result{}, err
	}
	if err := report.WriteFile(out, data); err != nil {
		return result{}, err
	}

	return result{input: input, report: out, store: store, doc: doc}, nil
}

// publish logs, prints and records a finished run.
func (r *runner) publish(res result) {
	r.logger.Info("Report written",
		"input", res.input,
		"report", res.report,
		"errors", res.store.ErrorCount)
	report.Summary(r.out, res.input, res.report, res.store)

	if r.collector != nil {
		r.collector.Record(res.input, res.store, res.doc)
	}
}

func (r *runner) flushMetrics() error {
	if r.collector == nil {
		return nil
	}
	if err := r.collector.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		return err
	}
	r.logger.Debug("Metrics written", "path", r.cfg.Metrics.Textfile)
	return nil
}

// watchInputs re-validates inputs as they change until ctx is done.
func (r *runner) watchInputs(ctx context.Context, inputs []string) error {
	w, err := watch.New(inputs, r.cfg.Watch.Debounce, r.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	defer w.Stop()

	for ev := range w.Events() {
		r.logger.Debug("Re-validating", "input", ev.Path, "op", ev.Operation)
		if err := r.check(ev.Path); err != nil {
			return err
		}
		if err := r.flushMetrics(); err != nil {
			r.logger.Warn("Failed to write metrics", "error", err)
		}
	}

	if dropped := w.DroppedEvents(); dropped > 0 {
		r.logger.Warn("Dropped watch events", "count", dropped)
	}
	return nil
}
