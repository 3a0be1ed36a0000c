package errors

import (
	"sync"
	"sync/atomic"
)

// ErrorHook is called synchronously for every built EnhancedError.
// Hooks must be fast and must not build new EnhancedErrors.
type ErrorHook func(ee *EnhancedError)

var (
	hooksMu   sync.RWMutex
	hooks     []ErrorHook
	haveHooks atomic.Bool
)

// AddErrorHook registers a hook. Metrics use this to count errors by component and category.
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = append(hooks, hook)
	haveHooks.Store(true)
}

// ClearErrorHooks removes all hooks.
func ClearErrorHooks() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = nil
	haveHooks.Store(false)
}

func runHooks(ee *EnhancedError) {
	if !haveHooks.Load() {
		return
	}

	hooksMu.RLock()
	snapshot := hooks
	hooksMu.RUnlock()

	for _, hook := range snapshot {
		hook(ee)
	}
}
