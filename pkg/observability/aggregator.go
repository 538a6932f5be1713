package observability

import (
	"context"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Combine fans every event out to all hooks, in order. Nil callbacks are skipped.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			for _, h := range hooks {
				if h.OnStateChange != nil {
					h.OnStateChange(ctx, e)
				}
			}
		},
		OnRequestComplete: func(ctx context.Context, e *domain.RequestEvent) {
			for _, h := range hooks {
				if h.OnRequestComplete != nil {
					h.OnRequestComplete(ctx, e)
				}
			}
		},
		OnModelLoad: func(ctx context.Context, e *domain.ModelEvent) {
			for _, h := range hooks {
				if h.OnModelLoad != nil {
					h.OnModelLoad(ctx, e)
				}
			}
		},
		OnModelEvict: func(ctx context.Context, e *domain.ModelEvent) {
			for _, h := range hooks {
				if h.OnModelEvict != nil {
					h.OnModelEvict(ctx, e)
				}
			}
		},
		OnRetrieve: func(ctx context.Context, e *domain.RetrievalEvent) {
			for _, h := range hooks {
				if h.OnRetrieve != nil {
					h.OnRetrieve(ctx, e)
				}
			}
		},
	}
}
