package council

import (
	"context"
	"sync"
	"time"

	"goa.design/clue/log"
	"golang.org/x/sync/errgroup"

	"github.com/johnayoung/llm-council/internal/provider"
)

// Retry policy for provider calls. Two attempts total; connection refused
// fails fast; everything else backs off once, doubling the base delay per
// attempt.
const (
	maxAttempts       = 2
	initialRetryDelay = time.Second
)

// Invoker fans a single prompt out to many models concurrently and gathers
// every result. A model's failure never cancels or blocks its siblings.
type Invoker struct {
	router     *provider.Router
	retryDelay time.Duration
}

// NewInvoker creates an invoker dispatching through the given router.
func NewInvoker(router *provider.Router) *Invoker {
	return &Invoker{router: router, retryDelay: initialRetryDelay}
}

type dispatch struct {
	model string // original, possibly prefixed identifier
	bare  string // identifier the provider expects
	prov  provider.Provider
}

// InvokeAll queries all models in parallel and waits for every call to
// complete or fail. The returned map has exactly one entry per requested
// model, keyed by the original identifier.
func (inv *Invoker) InvokeAll(ctx context.Context, models []string, messages []provider.Message, timeout time.Duration) map[string]CallResult {
	// Group calls by provider so each backend's own concurrency is
	// respected, then merge back into one flat map.
	groups := make(map[string][]dispatch)
	for _, model := range models {
		prov, bare := inv.router.Resolve(model)
		name := prov.Name()
		groups[name] = append(groups[name], dispatch{model: model, bare: bare, prov: prov})
	}

	var (
		mu      sync.Mutex
		results = make(map[string]CallResult, len(models))
	)

	g := new(errgroup.Group)
	for _, batch := range groups {
		for _, d := range batch {
			g.Go(func() error {
				res := inv.invoke(ctx, d, messages, timeout)

				mu.Lock()
				results[d.model] = res
				mu.Unlock()
				return nil
			})
		}
	}

	// Failures are captured per slot; the group itself never errors.
	_ = g.Wait()

	return results
}

// InvokeOne queries a single model with the same retry policy. Used for the
// chairman call and the short title/search-query helper calls.
func (inv *Invoker) InvokeOne(ctx context.Context, model string, messages []provider.Message, timeout time.Duration) CallResult {
	prov, bare := inv.router.Resolve(model)
	return inv.invoke(ctx, dispatch{model: model, bare: bare, prov: prov}, messages, timeout)
}

func (inv *Invoker) invoke(ctx context.Context, d dispatch, messages []provider.Message, timeout time.Duration) CallResult {
	var lastErr *provider.CallError

	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		content, err := d.prov.Query(callCtx, provider.Request{
			Model:    d.bare,
			Messages: messages,
		})
		cancel()

		if err == nil {
			return CallResult{Model: d.model, Content: content}
		}

		lastErr = provider.Classify(err)
		if !provider.Retryable(lastErr) {
			break
		}

		if attempt < maxAttempts-1 {
			log.Debugf(ctx, "retrying %s after %s failure", d.model, lastErr.Kind)
			delay := inv.retryDelay << attempt
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return CallResult{Model: d.model, Err: provider.Classify(ctx.Err())}
			}
		}
	}

	log.Error(ctx, lastErr, log.KV{K: "model", V: d.model}, log.KV{K: "kind", V: lastErr.Kind})
	return CallResult{Model: d.model, Err: lastErr}
}
