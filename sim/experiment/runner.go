// Package experiment runs independent simulation trials in parallel. Each
// trial owns its Simulator; trials share nothing but the slice their
// results are written into, one element per trial.
package experiment

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TrialFunc runs trial i and writes its results into *trial.
type TrialFunc[T any] func(ctx context.Context, i int, trial *T) error

type options struct {
	workers int
	logger  *logrus.Logger
}

// Option configures Run.
type Option func(*options)

// WithWorkers bounds the number of trials running at once. Values below one
// select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger progress is reported to.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run calls fn once for every element of trials on a bounded worker pool and
// waits for all of them. The first failing trial cancels the context passed
// to the others and its error is returned. A panic inside a trial, including
// one raised by a simulated process, is returned as that trial's error.
// Trials not yet started when ctx is cancelled are skipped and ctx's error
// is returned.
func Run[T any](ctx context.Context, trials []T, fn TrialFunc[T], opts ...Option) error {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	var finished atomic.Int64
	total := len(trials)
	o.logger.Infof("running %d trials on %d workers", total, o.workers)

	for i := range trials {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("trial %d panicked: %v", i, r)
				}
			}()
			if err := fn(gctx, i, &trials[i]); err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			n := finished.Add(1)
			o.logger.Debugf("trial %d finished (%d/%d)", i, n, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o.logger.Infof("%d trials finished", finished.Load())
	return nil
}
