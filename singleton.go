package adapter

import "sync"

// Process-wide adapter instance, built lazily from the environment so warm
// invocations of the hosting runtime reuse it. Write-once then read-only;
// the mutex only guards construction.
var (
	defaultMu      sync.Mutex
	defaultAdapter *Adapter
)

// Default returns the process-wide adapter, building it from the
// environment on first use. A configuration error leaves no instance
// behind, so a later call (after the environment is fixed) retries.
func Default() (*Adapter, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultAdapter != nil {
		return defaultAdapter, nil
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	defaultAdapter = New(cfg)
	return defaultAdapter, nil
}

// Reset discards the process-wide instance. Test hook.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultAdapter = nil
}

// Initialized reports whether the process-wide instance exists.
func Initialized() bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultAdapter != nil
}
