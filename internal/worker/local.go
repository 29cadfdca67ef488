package worker

import (
	"context"
	"sync/atomic"

	"github.com/dshills/contentsearch/internal/matcher"
	"github.com/dshills/contentsearch/pkg/types"
)

// Local is an in-process worker. It runs one batch at a time; concurrent
// Search calls queue behind the running one.
type Local struct {
	cache  *matcher.Cache
	slot   chan struct{}
	closed atomic.Bool
}

// NewLocal creates an in-process worker with its own matcher cache
func NewLocal() *Local {
	return &Local{
		cache: matcher.NewCache(matcher.DefaultCacheSize),
		slot:  make(chan struct{}, 1),
	}
}

func (l *Local) Search(ctx context.Context, req Request) ([]types.FileMatch, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.slot }()

	resp := handle(ctx, l.cache, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	return resp.Matches, nil
}

func (l *Local) Close() error {
	l.closed.Store(true)
	return nil
}
