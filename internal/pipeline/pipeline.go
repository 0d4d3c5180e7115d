package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	"github.com/couchcryptid/ghcn-daily-etl/internal/export"
	"github.com/couchcryptid/ghcn-daily-etl/internal/observability"
	"github.com/google/uuid"
)

// Fetcher delivers a station's raw .dly file.
type Fetcher interface {
	Fetch(ctx context.Context, station string, w io.Writer) (int64, error)
}

// RowPublisher forwards finished day rows to a downstream sink.
type RowPublisher interface {
	PublishRows(ctx context.Context, runID string, rows []domain.OutputRow) error
}

// Stages of a run, used to label failures.
const (
	StageRetrieve  = "retrieve"
	StageTranscode = "transcode"
	StageAggregate = "aggregate"
	StageWrite     = "write"
	StagePublish   = "publish"
)

// StageError attributes a run failure to the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Options tune how runs use the filesystem and size months.
type Options struct {
	WorkDir          string // parent of per-run scratch dirs; empty means os.TempDir
	DayCountPolicy   domain.DayCountPolicy
	KeepIntermediate bool
}

// Job describes one conversion. When InputPath is set the file is used as is
// and never deleted; otherwise StationID is downloaded into scratch space.
type Job struct {
	StationID  string
	InputPath  string
	OutputPath string // defaults to <station><ext> in the working directory
	Format     string // "csv" or "xlsx"
}

// name identifies the job in file names: the station id, or the input file's base name.
func (j Job) name() string {
	if j.StationID != "" {
		return j.StationID
	}
	return strings.TrimSuffix(filepath.Base(j.InputPath), filepath.Ext(j.InputPath))
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	OutputPath string
	Transcode  domain.TranscodeStats
	Months     int
	Rows       int
	Published  int
	Duration   time.Duration
}

// Pipeline runs the fetch -> transcode -> aggregate -> write sequence.
type Pipeline struct {
	fetcher   Fetcher
	publisher RowPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil to skip publishing.
func New(f Fetcher, publisher RowPublisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one job to completion; the returned error is a *StageError.
// A failure before or during the write stage leaves no output file and any
// existing file at OutputPath untouched. A publish failure happens after the
// table is in place, so the written file remains.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID, "station", job.StationID)

	enc, err := export.ForFormat(job.Format)
	if err != nil {
		return res, &StageError{Stage: StageWrite, Err: err}
	}
	res.OutputPath = job.OutputPath
	if res.OutputPath == "" {
		res.OutputPath = job.name() + enc.Extension()
	}

	start := p.begin()
	rows, err := p.extract(ctx, logger, job, &res)
	if err == nil {
		err = p.writeOutput(res.OutputPath, enc, rows)
	}
	if err == nil && p.publisher != nil {
		if perr := p.publisher.PublishRows(ctx, res.RunID, rows); perr != nil {
			err = &StageError{Stage: StagePublish, Err: perr}
		} else {
			res.Published = len(rows)
			p.metrics.RowsPublished.Add(float64(len(rows)))
		}
	}
	res.Duration = p.finish(start, err)

	if err != nil {
		logger.Error("run failed", "error", err, "duration", res.Duration)
		return res, err
	}
	logger.Info("run complete",
		"output", res.OutputPath,
		"records", res.Transcode.Lines,
		"skipped", res.Transcode.Skipped,
		"months", res.Months,
		"rows", res.Rows,
		"published", res.Published,
		"duration", res.Duration,
	)
	return res, nil
}

// Convert downloads and converts a station's file, returning the encoded
// table instead of writing it to disk.
func (p *Pipeline) Convert(ctx context.Context, station, format string) ([]byte, error) {
	enc, err := export.ForFormat(format)
	if err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}

	res := Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID, "station", station)

	start := p.begin()
	var buf bytes.Buffer
	rows, err := p.extract(ctx, logger, Job{StationID: station}, &res)
	if err == nil {
		if eerr := enc.Encode(&buf, rows); eerr != nil {
			err = &StageError{Stage: StageWrite, Err: eerr}
		}
	}
	res.Duration = p.finish(start, err)

	if err != nil {
		logger.Error("conversion failed", "error", err)
		return nil, err
	}
	p.metrics.RowsWritten.Add(float64(len(rows)))
	logger.Info("conversion complete", "format", format, "rows", res.Rows, "bytes", buf.Len(), "duration", res.Duration)
	return buf.Bytes(), nil
}

func (p *Pipeline) begin() time.Time {
	p.metrics.PipelineRunning.Inc()
	return clock.Now()
}

func (p *Pipeline) finish(start time.Time, err error) time.Duration {
	p.metrics.PipelineRunning.Dec()
	d := clock.Since(start)
	p.metrics.RunDuration.Observe(d.Seconds())

	if err != nil {
		outcome := "error"
		var se *StageError
		if errors.As(err, &se) {
			outcome = se.Stage + "_error"
		}
		p.metrics.Runs.WithLabelValues(outcome).Inc()
		return d
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(clock.Now().Unix()))
	p.ready.Store(true)
	return d
}

// extract runs retrieval, transcoding and aggregation inside a private
// scratch directory that is removed afterwards unless KeepIntermediate is set.
func (p *Pipeline) extract(ctx context.Context, logger *slog.Logger, job Job, res *Result) ([]domain.OutputRow, error) {
	name := job.name()
	work, err := os.MkdirTemp(p.opts.WorkDir, "ghcn-"+name+"-")
	if err != nil {
		return nil, &StageError{Stage: StageRetrieve, Err: fmt.Errorf("create work dir: %w", err)}
	}
	defer func() {
		if p.opts.KeepIntermediate {
			logger.Info("keeping intermediate files", "dir", work)
			return
		}
		if err := os.RemoveAll(work); err != nil {
			logger.Warn("cleanup failed", "dir", work, "error", err)
		}
	}()

	input := job.InputPath
	if input == "" {
		input = filepath.Join(work, name+".dly")
		if err := p.retrieve(ctx, job.StationID, input); err != nil {
			return nil, &StageError{Stage: StageRetrieve, Err: err}
		}
	}

	intermediate := filepath.Join(work, name+".csv")
	stats, err := p.transcode(ctx, logger, input, intermediate)
	res.Transcode = stats
	if err != nil {
		return nil, &StageError{Stage: StageTranscode, Err: err}
	}

	agg := domain.NewAggregator(logger, p.opts.DayCountPolicy)
	rows, err := p.aggregate(ctx, agg, intermediate)
	res.Months = len(agg.Months())
	if err != nil {
		var de *domain.DecodeError
		if errors.As(err, &de) {
			p.metrics.DecodeErrors.Inc()
		}
		return nil, &StageError{Stage: StageAggregate, Err: err}
	}
	res.Rows = len(rows)
	p.metrics.MonthsAggregated.Add(float64(res.Months))
	return rows, nil
}

func (p *Pipeline) retrieve(ctx context.Context, station, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := p.fetcher.Fetch(ctx, station, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *Pipeline) transcode(ctx context.Context, logger *slog.Logger, src, dest string) (domain.TranscodeStats, error) {
	in, err := os.Open(src)
	if err != nil {
		return domain.TranscodeStats{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return domain.TranscodeStats{}, fmt.Errorf("create intermediate: %w", err)
	}

	stats, err := domain.NewTranscoder(logger).Transcode(ctx, in, out)
	p.metrics.RecordsTranscoded.Add(float64(stats.Lines))
	p.metrics.RecordsSkipped.Add(float64(stats.Skipped))
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close intermediate: %w", cerr)
	}
	return stats, err
}

func (p *Pipeline) aggregate(ctx context.Context, agg *domain.Aggregator, src string) ([]domain.OutputRow, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open intermediate: %w", err)
	}
	defer in.Close()

	if err := agg.Consume(ctx, in); err != nil {
		return nil, err
	}
	return agg.Rows()
}

// writeOutput encodes rows into a temp file next to dest and renames it into
// place, so a failed run never leaves a partial table.
func (p *Pipeline) writeOutput(dest string, enc export.Encoder, rows []domain.OutputRow) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return &StageError{Stage: StageWrite, Err: fmt.Errorf("create temp output: %w", err)}
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &StageError{Stage: StageWrite, Err: err}
	}

	bw := bufio.NewWriter(tmp)
	if err := enc.Encode(bw, rows); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flush output: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync output: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &StageError{Stage: StageWrite, Err: fmt.Errorf("close output: %w", err)}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return &StageError{Stage: StageWrite, Err: fmt.Errorf("rename output: %w", err)}
	}

	p.metrics.RowsWritten.Add(float64(len(rows)))
	return nil
}
