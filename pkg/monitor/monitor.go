package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fraud-watch/pkg/analysis"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/selection"
)

// Page is one independently mounted view. Pages share nothing in memory;
// each learns the selection from the channel and fetches its own data.
type Page interface {
	Name() string
	// Refresh receives every accepted analysis result. A zero sel with a nil
	// res means no address is selected.
	Refresh(ctx context.Context, sel selection.Selection, res *analysis.Result)
	// Fail receives a failed fetch. The page keeps its last good data.
	Fail(sel selection.Selection, err error)
}

// Monitor mounts pages against the shared selection channel.
type Monitor struct {
	channel  *selection.Channel
	source   analysis.Source
	pageSize int
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(channel *selection.Channel, src analysis.Source, pageSize int, interval time.Duration, m *metrics.Metrics) *Monitor {
	return &Monitor{
		channel:  channel,
		source:   src,
		pageSize: pageSize,
		interval: interval,
		metrics:  m,
	}
}

// Mounted is a running page. Unmount stops all of its timers.
type Mounted struct {
	page    Page
	fetcher *analysis.Fetcher
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Mount starts a selection watcher and an analysis poller for p, both bound
// to a child of ctx. The poller restarts on every selection change and is
// idle while no address is selected.
func (m *Monitor) Mount(ctx context.Context, p Page) *Mounted {
	ctx, cancel := context.WithCancel(ctx)
	mt := &Mounted{
		page:    p,
		fetcher: analysis.NewFetcher(m.source, m.pageSize, m.interval, m.metrics),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	changes := make(chan selection.Selection, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.channel.Watch(gctx, func(sel selection.Selection) {
			// keep only the newest pending selection
			select {
			case <-changes:
			default:
			}
			changes <- sel
		})
	})
	g.Go(func() error {
		return mt.follow(gctx, changes, m.metrics)
	})

	log.Debug().Str("page", p.Name()).Msg("page mounted")
	go func() {
		mt.err = g.Wait()
		mt.fetcher.Close()
		close(mt.done)
	}()
	return mt
}

// follow runs one poller at a time, replacing it whenever the selection changes.
func (mt *Mounted) follow(ctx context.Context, changes <-chan selection.Selection, m *metrics.Metrics) error {
	var (
		current selection.Selection
		started bool
		stop    context.CancelFunc = func() {}
		stopped chan struct{}
	)
	halt := func() {
		stop()
		if stopped != nil {
			<-stopped
			stopped = nil
		}
	}
	defer halt()

	for {
		var sel selection.Selection
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sel = <-changes:
		}
		if started && sel == current {
			continue
		}
		halt()
		if started {
			m.IncSelectionChange()
		}
		started, current = true, sel

		if sel.IsZero() {
			mt.page.Refresh(ctx, sel, nil)
			continue
		}
		log.Debug().Str("page", mt.page.Name()).Str("address", extractor.Abbrev(sel.Address)).Msg("page following address")
		// switching back within one interval shows the cached result until the poll lands
		if res, ok := mt.fetcher.Latest(sel); ok {
			mt.page.Refresh(ctx, sel, res)
		}

		pctx, cancel := context.WithCancel(ctx)
		stop, stopped = cancel, make(chan struct{})
		go func(done chan struct{}) {
			defer close(done)
			mt.fetcher.Poll(pctx, sel, func(res *analysis.Result, err error) {
				if pctx.Err() != nil {
					return
				}
				if err != nil {
					log.Debug().Err(err).Str("page", mt.page.Name()).Msg("analysis fetch failed")
					mt.page.Fail(sel, err)
					return
				}
				mt.page.Refresh(pctx, sel, res)
			})
		}(stopped)
	}
}

func (mt *Mounted) Page() Page { return mt.page }

// Done is closed once the page has fully stopped.
func (mt *Mounted) Done() <-chan struct{} { return mt.done }

// Unmount cancels the page and waits for its goroutines to exit.
func (mt *Mounted) Unmount() error {
	mt.cancel()
	<-mt.done
	if errors.Is(mt.err, context.Canceled) {
		return nil
	}
	return mt.err
}

// Wait blocks until the page stops on its own or its parent context ends.
func (mt *Mounted) Wait() error {
	<-mt.done
	if errors.Is(mt.err, context.Canceled) {
		return nil
	}
	return mt.err
}
