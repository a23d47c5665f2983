// Package fetchkit provides a resilient client-side data-fetching layer
// with composable reliability primitives:
//
//   - Retries with exponential backoff + optional jitter
//   - Request de-duplication (merges concurrent identical in-flight requests)
//   - TTL response caching, in-memory (LRU-bounded) or persisted to disk
//   - Stale-while-revalidate: serve cached data immediately, refresh behind it
//   - Optimistic updates with rollback closures and bounded tracking windows
//   - Keyed parallel fan-out that partitions results and errors per key
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - No hidden globals: the de-duplication registry, cache and clock are
//     explicit values passed into each Fetcher
//   - Safe concurrent use of a single Fetcher instance; a new Execute call
//     aborts the previous in-flight one so only the newest result commits
//   - Extensibility via pluggable Cache, Logger and metrics collector
//
// Typical usage:
//
//	fetcher := fetchkit.NewFetcher(loadProducts,
//	    fetchkit.WithKey("products"),
//	    fetchkit.WithRetryAttempts(3),
//	    fetchkit.WithCache(fetchkit.NewMemoryCache(256), 5*time.Minute),
//	    fetchkit.WithStaleWhileRevalidate(),
//	    fetchkit.WithDeduplicator(fetchkit.NewDeduplicator()),
//	)
//	products, err := fetcher.Execute(ctx)
//
// Aborted executes settle silently: the superseded caller receives ErrAborted
// but no Error state is committed and no OnError callback fires. Only the
// final failure after the retry budget is exhausted is surfaced.
package fetchkit
