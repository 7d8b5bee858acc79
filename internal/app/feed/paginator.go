package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 50
	DefaultPageTimeout = 15 * time.Second
)

// Paginator requests older pages of the remote log on demand, keyed off the
// store's oldest loaded key. At most one fetch is outstanding at a time.
type Paginator struct {
	log      Log
	store    *Store
	recon    *Reconciler
	logger   *zap.SugaredLogger
	pageSize int
	timeout  time.Duration
	inFlight atomic.Bool
}

func NewPaginator(log Log, store *Store, recon *Reconciler, logger *zap.Logger, pageSize int, timeout time.Duration) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	return &Paginator{
		log:      log,
		store:    store,
		recon:    recon,
		logger:   logger.Sugar(),
		pageSize: pageSize,
		timeout:  timeout,
	}
}

// LoadOlder fetches one page strictly older than the current cursor and
// feeds it through the reconciler's insert path. A call while another fetch
// is in flight is a no-op. The fetch carries a timeout so a hung remote
// cannot wedge the in-flight guard; on failure the guard is released and
// "more available" stays true so the caller may retry.
func (p *Paginator) LoadOlder(ctx context.Context) (int, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debugw("Page load already in flight, skipping")
		return 0, nil
	}
	defer p.inFlight.Store(false)

	if !p.store.MoreAvailable() {
		return 0, nil
	}
	oldest, ok := p.store.OldestKey()
	if !ok {
		return 0, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages, err := p.log.FetchPage(fetchCtx, oldest, p.pageSize)
	if err != nil {
		p.logger.Warnw("Page fetch failed",
			"before_key", oldest,
			"limit", p.pageSize,
			"error", err,
		)
		return 0, fmt.Errorf("failed to fetch page before %q: %w", oldest, err)
	}

	for _, msg := range messages {
		if err := p.recon.EnqueueInsert(ctx, msg); err != nil {
			return 0, fmt.Errorf("failed to enqueue page entry %q: %w", msg.Key, err)
		}
	}

	if len(messages) < p.pageSize {
		p.store.SetMoreAvailable(false)
	}

	p.logger.Infow("Older page loaded",
		"before_key", oldest,
		"count", len(messages),
		"more_available", p.store.MoreAvailable(),
	)
	return len(messages), nil
}

// InFlight reports whether a page fetch is currently outstanding.
func (p *Paginator) InFlight() bool {
	return p.inFlight.Load()
}
