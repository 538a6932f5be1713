// Package middleware decorates a ports.DocumentStore with at-rest protections.
package middleware

import "github.com/aretw0/mdsa/pkg/ports"

// Middleware wraps a DocumentStore.
type Middleware func(ports.DocumentStore) ports.DocumentStore

// Chain applies middlewares so the first one sees documents first on Save.
func Chain(store ports.DocumentStore, mws ...Middleware) ports.DocumentStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
