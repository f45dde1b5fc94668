package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/metrics"
	"github.com/fraud-watch/pkg/selection"
)

// ErrStale is returned for a response that arrived after a newer request for
// the same selection was issued. Such responses are never shown.
var ErrStale = errors.New("analysis response superseded by a newer request")

type Source interface {
	Analyze(ctx context.Context, chain config.Chain, address string, page, offset int) (*api.AnalysisResponse, error)
}

type Result struct {
	Selection selection.Selection
	Count     int
	Items     []api.Transaction
	FetchedAt time.Time
	Seq       uint64
}

// Fetcher issues analysis requests and keeps the latest accepted response
// per selection. Every request is tagged with a per-key sequence number and
// only the newest one may land.
type Fetcher struct {
	src      Source
	pageSize int
	interval time.Duration
	metrics  *metrics.Metrics
	cache    *ttlcache.Cache[string, *Result]

	mu  sync.Mutex
	seq map[string]uint64
}

func NewFetcher(src Source, pageSize int, interval time.Duration, m *metrics.Metrics) *Fetcher {
	cache := ttlcache.New[string, *Result](
		ttlcache.WithTTL[string, *Result](interval),
		ttlcache.WithDisableTouchOnHit[string, *Result](), // freshness is measured from the fetch, not the last read
	)
	go cache.Start()

	return &Fetcher{
		src:      src,
		pageSize: pageSize,
		interval: interval,
		metrics:  m,
		cache:    cache,
		seq:      make(map[string]uint64),
	}
}

func (f *Fetcher) Interval() time.Duration { return f.interval }

// Close stops the cache janitor.
func (f *Fetcher) Close() {
	f.cache.Stop()
}

// Fetch requests the first page of analyzed transactions for sel.
func (f *Fetcher) Fetch(ctx context.Context, sel selection.Selection) (*Result, error) {
	key := sel.Key()

	f.mu.Lock()
	f.seq[key]++
	mine := f.seq[key]
	f.mu.Unlock()

	f.metrics.IncFetch(string(sel.Chain))
	res, err := f.src.Analyze(ctx, sel.Chain, sel.Address, 1, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq[key] != mine {
		f.metrics.IncStaleDiscard()
		log.Debug().Str("key", key).Uint64("seq", mine).Msg("discarding stale analysis response")
		return nil, ErrStale
	}
	if err != nil {
		f.metrics.IncFetchFailure(string(sel.Chain))
		return nil, fmt.Errorf("analyze %s: %w", extractor.Abbrev(sel.Address), err)
	}

	result := &Result{
		Selection: sel,
		Count:     res.Count,
		Items:     res.Items,
		FetchedAt: time.Now().UTC(),
		Seq:       mine,
	}
	f.cache.Set(key, result, ttlcache.DefaultTTL)
	f.metrics.SetLastItems(string(sel.Chain), len(res.Items))
	return result, nil
}

// Latest returns the cached result for sel if it is younger than one poll interval.
func (f *Fetcher) Latest(sel selection.Selection) (*Result, bool) {
	item := f.cache.Get(sel.Key())
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Poll fetches immediately and then every interval until ctx is done,
// passing each accepted result or failure to fn. A zero selection disables
// polling and Poll returns at once.
func (f *Fetcher) Poll(ctx context.Context, sel selection.Selection, fn func(*Result, error)) error {
	if sel.IsZero() {
		return nil
	}

	run := func() {
		res, err := f.Fetch(ctx, sel)
		if errors.Is(err, ErrStale) || ctx.Err() != nil {
			return
		}
		fn(res, err)
	}

	run()
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			run()
		}
	}
}
