package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryHasScopesInitiallyFalse(t *testing.T) {
	r := New()
	assert.False(t, r.HasScopes())
	assert.Empty(t, r.Union())
}

func TestRegistrySetAddsScope(t *testing.T) {
	r := New()
	changed := r.Set("window-1", []int64{1, 2, 3})

	assert.True(t, changed)
	assert.True(t, r.HasScopes())
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}, 3: {}}, r.Union())
}

func TestRegistrySetEmptyIDsRemovesScope(t *testing.T) {
	r := New()
	r.Set("window-1", []int64{1, 2})

	changed := r.Set("window-1", nil)
	assert.True(t, changed)
	assert.False(t, r.HasScopes())
}

func TestRegistrySetEmptyOnUnknownScopeIsNoop(t *testing.T) {
	r := New()
	changed := r.Set("never-registered", nil)
	assert.False(t, changed)
	assert.False(t, r.HasScopes())
}

func TestRegistryUnionAcrossScopes(t *testing.T) {
	r := New()
	r.Set("window-1", []int64{1, 2})
	r.Set("window-2", []int64{2, 3})

	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}, 3: {}}, r.Union())
}

func TestRegistrySetReturnsFalseWhenUnionUnchanged(t *testing.T) {
	r := New()
	r.Set("window-1", []int64{1, 2})
	r.Set("window-2", []int64{1, 2})

	// window-2 duplicates window-1's ids exactly, so the union is unchanged.
	changed := r.Set("window-2", []int64{2, 1})
	assert.False(t, changed)
}

func TestRegistryHasScopesDistinguishesEmptyUnionFromNoScopes(t *testing.T) {
	r := New()
	// a scope registered with ids that happen to overlap into an empty
	// union never occurs since Set(scope, []) deletes the scope — the
	// "scopes registered but union is empty" state cannot arise from Set
	// alone. HasScopes must still report true for any registered scope,
	// regardless of what its membership is.
	r.Set("window-1", []int64{1})
	r.Set("window-1", []int64{1}) // re-set same scope, union non-empty
	assert.True(t, r.HasScopes())
	assert.NotEmpty(t, r.Union())
}
