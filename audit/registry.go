// Package audit records and queries legacy audit rows and owns the state
// shared by every audit write: the disabled flag, the cache of audited type
// names and the foreign-key context.
package audit

import (
	"context"
	"slices"
	"sync"
)

// Well-known foreign-key context keys.
const (
	KeyMemberUID             = "member_uid"
	KeyMembershipUID         = "membership_uid"
	KeyMembershipContractUID = "membership_contract_uid"
)

// ForeignKeys maps key names such as "membership_uid" to legacy uids.
type ForeignKeys map[string]int64

// Lookup returns the uid stored under key, if any.
func (k ForeignKeys) Lookup(key string) (int64, bool) {
	v, ok := k[key]
	return v, ok
}

func (k ForeignKeys) clone() ForeignKeys {
	out := make(ForeignKeys, len(k))
	for key, v := range k {
		out[key] = v
	}
	return out
}

// Registry is the shared audit state. The zero value is ready to use.
type Registry struct {
	mu sync.RWMutex

	disabled bool

	typesLoaded bool
	types       []string

	foreignKeys ForeignKeys
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetDisabled turns audit writes off (true) or back on (false).
func (r *Registry) SetDisabled(disabled bool) {
	r.mu.Lock()
	r.disabled = disabled
	r.mu.Unlock()
}

// Disabled reports whether audit writes are suppressed.
func (r *Registry) Disabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled
}

// Suppress runs fn with auditing disabled and restores the previous flag
// afterwards, even if fn panics.
func (r *Registry) Suppress(fn func() error) error {
	r.mu.Lock()
	prev := r.disabled
	r.disabled = true
	r.mu.Unlock()

	defer r.SetDisabled(prev)
	return fn()
}

// auditedTypes returns the cached type names, calling load once to fill the
// cache. A failed load leaves the cache empty so the next call retries.
func (r *Registry) auditedTypes(ctx context.Context, load func(context.Context) ([]string, error)) ([]string, error) {
	r.mu.RLock()
	if r.typesLoaded {
		out := slices.Clone(r.types)
		r.mu.RUnlock()
		return out, nil
	}
	r.mu.RUnlock()

	loaded, err := load(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.typesLoaded {
		r.types = dedupe(loaded)
		r.typesLoaded = true
	}
	return slices.Clone(r.types), nil
}

// addAuditedType appends name unless already present and reports whether it did.
// The cache must be loaded first.
func (r *Registry) addAuditedType(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.types, name) {
		return false
	}
	r.types = append(r.types, name)
	return true
}

// SetForeignKeys replaces the foreign-key context. nil clears it.
func (r *Registry) SetForeignKeys(keys ForeignKeys) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if keys == nil {
		r.foreignKeys = ForeignKeys{}
		return
	}
	r.foreignKeys = keys.clone()
}

// ForeignKeys returns a copy of the foreign-key context, never nil.
func (r *Registry) ForeignKeys() ForeignKeys {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.foreignKeys.clone()
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

type foreignKeysKey struct{}

// WithForeignKeys scopes a foreign-key context to ctx. Keys found here take
// precedence over the registry's.
func WithForeignKeys(ctx context.Context, keys ForeignKeys) context.Context {
	return context.WithValue(ctx, foreignKeysKey{}, keys.clone())
}

func foreignKeysFrom(ctx context.Context) ForeignKeys {
	if v, ok := ctx.Value(foreignKeysKey{}).(ForeignKeys); ok {
		return v
	}
	return nil
}
