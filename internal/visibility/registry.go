// Package visibility tracks which subscriptions are currently "on screen"
// so the polling manager can stop refreshing what nobody is looking at.
package visibility

import "sync"

// Registry maps a window scope (an opaque caller-assigned id, one per
// visible window/panel) to the set of subscription ids that window
// currently has on screen. The effective visible set the polling manager
// polls is the union across every registered scope.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]map[int64]struct{}
}

// New builds an empty Registry — no scopes registered.
func New() *Registry {
	return &Registry{scopes: make(map[string]map[int64]struct{})}
}

// Set replaces the subscription-id set for a window scope, or removes the
// scope entirely when ids is empty. Returns true if the call actually
// changed the effective union, the signal the caller uses to decide
// whether to bump the reload signal (spec.md §4.2 set_visible must "bump
// reload only if the effective set actually changes").
func (r *Registry) Set(scope string, ids []int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.unionLocked()

	if len(ids) == 0 {
		if _, existed := r.scopes[scope]; !existed {
			return false
		}
		delete(r.scopes, scope)
	} else {
		set := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		r.scopes[scope] = set
	}

	after := r.unionLocked()
	return !sameSet(before, after)
}

// HasScopes reports whether any window scope is currently registered,
// distinguishing "no windows have ever reported" from "windows reported
// and their union happens to be empty" per spec.md §9's Open Question
// resolution.
func (r *Registry) HasScopes() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes) > 0
}

// Union returns the de-duplicated union of every registered scope's
// subscription ids.
func (r *Registry) Union() map[int64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unionLocked()
}

func (r *Registry) unionLocked() map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, set := range r.scopes {
		for id := range set {
			out[id] = struct{}{}
		}
	}
	return out
}

func sameSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
