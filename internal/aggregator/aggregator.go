// Package aggregator fans a search out to every runnable provider and merges
// the answers in provider priority order.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
	"github.com/EditMySave/HyOS-sub001/internal/settings"
)

// DefaultTimeout bounds each provider branch.
const DefaultTimeout = 10 * time.Second

// Resolver returns a configured adapter for a provider.
type Resolver interface {
	Resolve(id provider.ID, apiKey string) (provider.Provider, error)
}

// Pagination is one provider's reported paging state.
type Pagination struct {
	Provider   provider.ID `json:"provider"`
	TotalCount int         `json:"totalCount"`
	HasMore    bool        `json:"hasMore"`
}

// ProviderError records a branch that contributed nothing.
type ProviderError struct {
	Provider provider.ID `json:"provider"`
	Error    string      `json:"error"`
}

// Result is the merged answer of one search.
type Result struct {
	Results    []provider.Mod  `json:"results"`
	Pagination []Pagination    `json:"pagination"`
	Errors     []ProviderError `json:"errors"`
	// TotalCount sums the providers' totals; HasMore is set if any has more.
	TotalCount int  `json:"totalCount"`
	HasMore    bool `json:"hasMore"`
}

// Aggregator runs searches. It holds no result cache: every search is live.
type Aggregator struct {
	resolver Resolver
	timeout  time.Duration
}

// New creates an aggregator. A non-positive timeout uses DefaultTimeout.
func New(r Resolver, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{resolver: r, timeout: timeout}
}

type branchResult struct {
	id   provider.ID
	page *provider.Page
	err  error
}

// Runnable returns the providers a search would query, in priority order:
// enabled, holding a key when one is required, and selected by params.
func (a *Aggregator) Runnable(params provider.SearchParams, cfg settings.Settings) []provider.Provider {
	var out []provider.Provider
	for _, id := range provider.Order {
		pc, ok := cfg[id]
		if !ok || !pc.Enabled || !params.Wants(id) {
			continue
		}
		p, err := a.resolver.Resolve(id, pc.Key())
		if err != nil {
			slog.Warn("provider unavailable", "provider", id, "error", err)
			continue
		}
		if p.RequiresKey() && !p.Configured() {
			slog.Debug("provider enabled without API key, skipping", "provider", id)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Search queries every runnable provider concurrently and waits for all of
// them. A failing or timed-out provider is reported in Errors and the others
// still contribute.
func (a *Aggregator) Search(ctx context.Context, params provider.SearchParams, cfg settings.Settings) *Result {
	params = params.Normalize()
	runnable := a.Runnable(params, cfg)

	results := make([]branchResult, len(runnable))
	var wg sync.WaitGroup
	for i, p := range runnable {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.searchOne(ctx, p, params)
		}()
	}
	wg.Wait()

	res := &Result{
		Results:    []provider.Mod{},
		Pagination: []Pagination{},
		Errors:     []ProviderError{},
	}
	// results is already in priority order.
	for _, br := range results {
		if br.err != nil {
			res.Errors = append(res.Errors, ProviderError{Provider: br.id, Error: br.err.Error()})
			continue
		}
		res.Results = append(res.Results, br.page.Results...)
		res.Pagination = append(res.Pagination, Pagination{
			Provider:   br.id,
			TotalCount: br.page.TotalCount,
			HasMore:    br.page.HasMore,
		})
		res.TotalCount += br.page.TotalCount
		res.HasMore = res.HasMore || br.page.HasMore
	}

	slog.Info("mod search complete",
		"query", params.Query,
		"providers", len(runnable),
		"results", len(res.Results),
		"errors", len(res.Errors),
	)
	return res
}

func (a *Aggregator) searchOne(ctx context.Context, p provider.Provider, params provider.SearchParams) (br branchResult) {
	br.id = p.ID()
	defer func() {
		if r := recover(); r != nil {
			br.page, br.err = nil, fmt.Errorf("provider panicked: %v", r)
			slog.Error("provider search panicked", "provider", br.id, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	page, err := p.Search(ctx, params)
	if err == nil && page == nil {
		err = errors.New("provider returned no page")
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", a.timeout)
		}
		slog.Warn("provider search failed", "provider", br.id, "error", err, "elapsed", time.Since(start))
		br.err = err
		return br
	}
	br.page = page
	return br
}
