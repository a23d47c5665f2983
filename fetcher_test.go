package fetchkit

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestFetcherSuccess(t *testing.T) {
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		return product{ID: "p1", Name: "Bamboo straw"}, nil
	})

	var successes int32
	fetcher.OnSuccess(func(p product) {
		atomic.AddInt32(&successes, 1)
	})

	got, err := fetcher.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("Unexpected payload: %+v", got)
	}

	snap := fetcher.Snapshot()
	if snap.State != StateSuccess {
		t.Errorf("Expected success state, got %v", snap.State)
	}
	if snap.Data.Name != "Bamboo straw" {
		t.Errorf("Snapshot data not committed: %+v", snap.Data)
	}
	if atomic.LoadInt32(&successes) != 1 {
		t.Errorf("OnSuccess should fire once, fired %d times", successes)
	}
}

func TestFetcherRetryCountAndFinalError(t *testing.T) {
	var calls int32
	var surfaced int32

	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{}, errors.New("connection refused")
	},
		WithRetryAttempts(3),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(time.Second),
	)
	fetcher.OnError(func(err error) {
		atomic.AddInt32(&surfaced, 1)
	})

	_, err := fetcher.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected final error")
	}

	// 1 initial attempt + 3 retries.
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("Expected 4 invocations, got %d", got)
	}
	if got := atomic.LoadInt32(&surfaced); got != 1 {
		t.Errorf("OnError should fire once with the final error, fired %d times", got)
	}
	if fetcher.State() != StateError {
		t.Errorf("Expected error state, got %v", fetcher.State())
	}
}

func TestFetcherNoRetryForNonTransientError(t *testing.T) {
	var calls int32
	clientErr := &FetchError{Type: ErrorTypeClient, Message: "bad request"}

	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{}, clientErr
	},
		WithRetryAttempts(3),
		WithRetryDelay(time.Millisecond),
	)

	_, err := fetcher.Execute(context.Background())
	if !errors.Is(err, clientErr) {
		t.Fatalf("Expected client error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Non-transient error should not be retried, got %d invocations", got)
	}
}

func TestFetcherZeroRetries(t *testing.T) {
	var calls int32
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{}, errors.New("nope")
	}, WithRetryAttempts(0))

	if _, err := fetcher.Execute(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected a single invocation, got %d", got)
	}
}

func TestFetcherAbortsPreviousExecute(t *testing.T) {
	firstStarted := make(chan struct{})
	var firstCtx atomic.Value
	var call int32

	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		if atomic.AddInt32(&call, 1) == 1 {
			firstCtx.Store(ctx)
			close(firstStarted)
			<-ctx.Done()
			return product{}, ctx.Err()
		}
		return product{ID: "p2", Name: "second"}, nil
	})

	firstResult := make(chan error, 1)
	go func() {
		_, err := fetcher.Execute(context.Background())
		firstResult <- err
	}()

	<-firstStarted
	got, err := fetcher.Execute(context.Background())
	if err != nil {
		t.Fatalf("Second execute failed: %v", err)
	}
	if got.ID != "p2" {
		t.Errorf("Expected second call's result, got %+v", got)
	}

	if err := <-firstResult; !errors.Is(err, ErrAborted) {
		t.Errorf("Superseded execute should return ErrAborted, got %v", err)
	}
	if ctx := firstCtx.Load().(context.Context); ctx.Err() == nil {
		t.Error("First execute's context should be canceled")
	}

	snap := fetcher.Snapshot()
	if snap.State != StateSuccess || snap.Data.ID != "p2" {
		t.Errorf("Only the newest result should commit, snapshot: %+v", snap)
	}
	if snap.Err != nil {
		t.Errorf("Aborted execute should settle silently, got committed error %v", snap.Err)
	}
}

func TestFetcherServesFreshCacheWithoutFetching(t *testing.T) {
	cache := NewMemoryCache(16)
	raw, _ := json.Marshal(product{ID: "cached", Name: "Compost bin"})
	cache.Set("products", &Entry{Data: raw}, time.Minute)

	var calls int32
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{ID: "network"}, nil
	},
		WithKey("products"),
		WithCache(cache, time.Minute),
	)

	got, err := fetcher.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got.ID != "cached" {
		t.Errorf("Expected cached payload, got %+v", got)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Fresh cache hit should not touch the network")
	}
	if snap := fetcher.Snapshot(); snap.IsStale {
		t.Error("Fresh cache hit without SWR should not be marked stale")
	}
}

func TestFetcherStaleWhileRevalidate(t *testing.T) {
	cache := NewMemoryCache(16)
	raw, _ := json.Marshal(product{ID: "stale", Name: "Old listing"})
	cache.Set("products", &Entry{Data: raw}, time.Minute)

	refreshed := make(chan struct{})
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		defer close(refreshed)
		return product{ID: "fresh", Name: "New listing"}, nil
	},
		WithKey("products"),
		WithCache(cache, time.Minute),
		WithStaleWhileRevalidate(),
	)

	got, err := fetcher.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got.ID != "stale" {
		t.Errorf("SWR should surface the cached payload first, got %+v", got)
	}

	snap := fetcher.Snapshot()
	if snap.State != StateSuccess || !snap.IsStale {
		t.Errorf("Expected stale success snapshot, got %+v", snap)
	}

	<-refreshed
	waitFor(t, time.Second, func() bool {
		s := fetcher.Snapshot()
		return s.Data.ID == "fresh" && !s.IsStale
	})

	entry, found := cache.Get("products")
	if !found {
		t.Fatal("Refresh should rewrite the cache entry")
	}
	var cached product
	if err := json.Unmarshal(entry.Data, &cached); err != nil || cached.ID != "fresh" {
		t.Errorf("Cache should hold refreshed payload, got %s", entry.Data)
	}
}

func TestFetcherCachesSuccessfulFetch(t *testing.T) {
	cache := NewMemoryCache(16)
	var calls int32

	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{ID: "p9"}, nil
	},
		WithKey("detail:p9"),
		WithCache(cache, time.Minute),
	)

	if _, err := fetcher.Execute(context.Background()); err != nil {
		t.Fatalf("First execute failed: %v", err)
	}
	if _, err := fetcher.Execute(context.Background()); err != nil {
		t.Fatalf("Second execute failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Second execute should be served from cache, got %d fetches", got)
	}
}

func TestFetcherInvalidate(t *testing.T) {
	cache := NewMemoryCache(16)
	var calls int32

	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		return product{ID: "p1"}, nil
	},
		WithKey("detail:p1"),
		WithCache(cache, time.Minute),
	)

	_, _ = fetcher.Execute(context.Background())
	fetcher.Invalidate()
	_, _ = fetcher.Execute(context.Background())

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Invalidate should force a refetch, got %d fetches", got)
	}
}

func TestFetcherDeduplicatesAcrossInstances(t *testing.T) {
	dedup := NewDeduplicator()
	var calls int32

	fn := func(ctx context.Context) (product, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return product{ID: "shared"}, nil
	}

	a := NewFetcher(fn, WithKey("products"), WithDeduplicator(dedup))
	b := NewFetcher(fn, WithKey("products"), WithDeduplicator(dedup))

	resA := make(chan product, 1)
	go func() {
		p, _ := a.Execute(context.Background())
		resA <- p
	}()
	time.Sleep(10 * time.Millisecond)
	pB, err := b.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	pA := <-resA

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected one underlying request, got %d", got)
	}
	if pA.ID != "shared" || pB.ID != "shared" {
		t.Errorf("Both fetchers should share the result, got %+v / %+v", pA, pB)
	}
}

func TestFetcherValidation(t *testing.T) {
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		return product{}, nil
	}, WithRetryAttempts(-1))

	if fetcher.IsValid() {
		t.Error("Negative retryAttempts should fail validation")
	}
	if _, err := fetcher.Execute(context.Background()); err == nil {
		t.Error("Execute should surface the validation error")
	}

	var fetchErr *FetchError
	if !errors.As(fetcher.ValidationError(), &fetchErr) || fetchErr.Type != ErrorTypeValidation {
		t.Errorf("Expected validation FetchError, got %v", fetcher.ValidationError())
	}
}

func TestFetcherStateTransitions(t *testing.T) {
	block := make(chan struct{})
	fetcher := NewFetcher(func(ctx context.Context) (product, error) {
		<-block
		return product{ID: "done"}, nil
	})

	if fetcher.State() != StateIdle {
		t.Errorf("New fetcher should be idle, got %v", fetcher.State())
	}

	result := make(chan struct{})
	go func() {
		_, _ = fetcher.Execute(context.Background())
		close(result)
	}()

	waitFor(t, time.Second, func() bool { return fetcher.State() == StateLoading })
	close(block)
	<-result

	if fetcher.State() != StateSuccess {
		t.Errorf("Expected success after resolve, got %v", fetcher.State())
	}
}
