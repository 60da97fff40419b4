package repodata

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 10

// CollectOptions configures CollectRepodatas.
type CollectOptions struct {
	Fetch Options
	Client Doer
	CacheDir string
	// Concurrent mirrors the "concurrent" configuration flag.
	// When false, URLs are fetched serially.
	Concurrent bool
	// Workers bounds the fetch worker pool width; zero means the default
	// of 10.
	Workers int
}

// CollectRepodatas fetches repodata for every URL in urls. When
// opts.Concurrent is set, URLs are dispatched to a bounded worker pool
// (golang.org/x/sync/errgroup.Group.SetLimit, the idiomatic analogue of a
// fixed-width thread pool); a negative Workers falls back to the serial
// path (zero selects the default width), covering pool-creation failure the same way a bounded
// native thread pool's fallback would (Go goroutine creation otherwise has
// no recoverable failure mode to fall back from). Result order always
// matches input URL order regardless of completion order.
func CollectRepodatas(ctx context.Context, urls []string, opts CollectOptions) ([]*CacheFile, error) {
	if !opts.Concurrent {
		return collectSerial(ctx, urls, opts)
	}

	if opts.Workers < 0 {
		return collectSerial(ctx, urls, opts)
	}
	workers := opts.Workers
	if workers == 0 {
		workers = defaultWorkers
	}

	results := make([]*CacheFile, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			cf, err := FetchRepodata(gctx, opts.Client, url, opts.CacheDir, opts.Fetch)
			if err != nil {
				return err
			}
			results[i] = cf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func collectSerial(ctx context.Context, urls []string, opts CollectOptions) ([]*CacheFile, error) {
	results := make([]*CacheFile, len(urls))
	for i, url := range urls {
		cf, err := FetchRepodata(ctx, opts.Client, url, opts.CacheDir, opts.Fetch)
		if err != nil {
			return nil, err
		}
		results[i] = cf
	}
	return results, nil
}
