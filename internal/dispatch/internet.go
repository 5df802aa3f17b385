package dispatch

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// InternetChecker reports whether the bot currently has outbound internet
// connectivity, caching the result for 30s so a flaky probe doesn't delay
// every gated command (spec.md §4.4).
type InternetChecker struct {
	mu        sync.Mutex
	cacheFor  time.Duration
	checkedAt time.Time
	reachable bool
	probe     func(ctx context.Context) bool
}

const defaultInternetCacheTTL = 30 * time.Second

func NewInternetChecker(probe func(ctx context.Context) bool) *InternetChecker {
	if probe == nil {
		probe = defaultHTTPProbe
	}
	return &InternetChecker{cacheFor: defaultInternetCacheTTL, probe: probe}
}

func defaultHTTPProbe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://connectivitycheck.gstatic.com/generate_204", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}

// Reachable returns the cached result, refreshing it synchronously when
// stale.
func (c *InternetChecker) Reachable(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.checkedAt) < c.cacheFor {
		defer c.mu.Unlock()
		return c.reachable
	}
	c.mu.Unlock()

	result := c.probe(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reachable = result
	c.checkedAt = time.Now()
	return result
}
