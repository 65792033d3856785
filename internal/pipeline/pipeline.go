// Package pipeline drives a single subset request: it opens the source
// file, derives the canonical schema, streams batches through the
// reconcile, filter and project stages, and encodes the result.
//
// A run is all or nothing. Bytes are returned only once the output file is
// complete; any failure or cancellation discards partial output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/parquet-go/compress"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/parslice/internal/logger"
	"github.com/vegasq/parslice/internal/output"
	"github.com/vegasq/parslice/internal/query"
	"github.com/vegasq/parslice/internal/reader"
	"github.com/vegasq/parslice/internal/table"
)

const (
	// DefaultBatchSize is the number of rows read per batch.
	DefaultBatchSize = 8192

	// DefaultIndexColumn is the system index column hidden from default
	// selections.
	DefaultIndexColumn = "_hipscat_index"
)

// Options configure a Pipeline.
type Options struct {
	BatchSize   int
	Workers     int
	IndexColumn string
	Codec       compress.Codec
	Logger      *slog.Logger
}

// Stats describe a completed run.
type Stats struct {
	RowsScanned int64
	RowsWritten int64
	Batches     int
	Duration    time.Duration
}

// Result is the output of a successful run.
type Result struct {
	Data  []byte
	Stats Stats
}

// Pipeline runs subset requests. It holds configuration only and may be
// shared between goroutines; every Run uses its own reader and encoder.
type Pipeline struct {
	opts Options
}

// New returns a pipeline, filling unset options with their defaults.
func New(opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.IndexColumn == "" {
		opts.IndexColumn = DefaultIndexColumn
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts}
}

// Run subsets the parquet file at path according to the request parameters.
// A logger attached to ctx with logger.WithContext takes precedence over the
// configured one.
func (p *Pipeline) Run(ctx context.Context, path string, params map[string]string) (*Result, error) {
	log := p.opts.Logger
	if l, ok := logger.Lookup(ctx); ok {
		log = l
	}
	r := &run{
		opts:  p.opts,
		log:   log.With("path", path),
		start: time.Now(),
		state: StateOpening,
	}
	r.log.Debug("pipeline state", "state", r.state)

	res, err := r.execute(ctx, path, params)
	if err != nil {
		r.transition(StateFailed)
		r.log.Warn("pipeline failed",
			"kind", Kind(err),
			"error", err,
			"rows_scanned", r.stats.RowsScanned,
			"batches", r.stats.Batches,
		)
		return nil, err
	}
	r.transition(StateDone)
	r.log.Info("pipeline finished",
		"rows_scanned", res.Stats.RowsScanned,
		"rows_written", res.Stats.RowsWritten,
		"batches", res.Stats.Batches,
		"bytes", len(res.Data),
		"duration", res.Stats.Duration,
	)
	return res, nil
}

// run is the state of one request.
type run struct {
	opts  Options
	log   *slog.Logger
	start time.Time
	state State
	stats Stats

	schema     *table.Schema
	selection  map[string]bool
	predicates []query.Predicate
}

func (r *run) transition(s State) {
	r.state = s
	r.log.Debug("pipeline state", "state", s)
}

func (r *run) execute(ctx context.Context, path string, params map[string]string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	src, err := reader.NewReader(path)
	if err != nil {
		if errors.Is(err, reader.ErrNestedColumn) || errors.Is(err, reader.ErrInvalidFile) {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer src.Close()
	r.transition(StateSchemaLoaded)

	source := src.Columns()
	req, err := query.Parse(params, table.Universe(source, r.opts.IndexColumn))
	if err != nil {
		return nil, err
	}
	if err := query.Check(source, req.Predicates); err != nil {
		return nil, err
	}
	r.predicates = req.Predicates
	r.selection = req.Selection()
	r.schema = table.Canonical(source, src.Metadata(), r.opts.IndexColumn, req.Requests(r.opts.IndexColumn))

	enc := output.NewParquetEncoder(r.schema, r.opts.Codec)
	r.transition(StateStreaming)

	if r.opts.Workers > 1 {
		err = r.streamParallel(ctx, src, enc)
	} else {
		err = r.stream(ctx, src, enc)
	}
	if err != nil {
		enc.Discard()
		return nil, err
	}

	r.transition(StateFinalizing)
	data, err := enc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	r.stats.RowsWritten = enc.Rows()
	r.stats.Duration = time.Since(r.start)
	return &Result{Data: data, Stats: r.stats}, nil
}

// next reads the next source batch. It returns io.EOF when the file is
// exhausted and ErrCanceled when ctx is done.
func (r *run) next(ctx context.Context, src *reader.Reader) (table.Batch, error) {
	if err := ctx.Err(); err != nil {
		return table.Batch{}, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	b, err := src.ReadBatch(r.opts.BatchSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.Batch{}, io.EOF
		}
		return table.Batch{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	r.stats.RowsScanned += int64(b.NumRows)
	r.stats.Batches++
	return b, nil
}

func (r *run) stream(ctx context.Context, src *reader.Reader, enc *output.ParquetEncoder) error {
	for {
		b, err := r.next(ctx, src)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		out, err := r.process(b)
		if err != nil {
			return err
		}
		if err := enc.WriteBatch(out); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
}

// streamParallel reads up to Workers batches at a time, processes them
// concurrently and writes the results in source order.
func (r *run) streamParallel(ctx context.Context, src *reader.Reader, enc *output.ParquetEncoder) error {
	window := make([]table.Batch, 0, r.opts.Workers)
	for {
		window = window[:0]
		eof := false
		for len(window) < r.opts.Workers {
			b, err := r.next(ctx, src)
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return err
			}
			window = append(window, b)
		}

		results := make([]table.Batch, len(window))
		g, gctx := errgroup.WithContext(ctx)
		for i := range window {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("%w: %w", ErrCanceled, err)
				}
				out, err := r.process(window[i])
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, out := range results {
			if err := enc.WriteBatch(out); err != nil {
				return fmt.Errorf("%w: %w", ErrIO, err)
			}
		}
		if eof {
			return nil
		}
	}
}

// process filters and shapes one source batch. Predicates run on the raw
// batch before Reconcile, so they see every source column, including the
// index column when it is not part of the output.
func (r *run) process(b table.Batch) (table.Batch, error) {
	if len(r.predicates) > 0 {
		mask, err := query.Evaluate(b, r.predicates)
		if err != nil {
			return table.Batch{}, err
		}
		b = table.Compact(b, mask)
	}
	b = table.Reconcile(b, r.schema)
	return table.Project(b, r.schema, r.selection), nil
}
