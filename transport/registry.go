package transport

import "log/slog"

// InitFunc constructs a Transport from a decoded TransportSpec. Each
// transport package registers one via Add from an init() function, mirroring
// the teacher's orchestra.Add driver registry.
type InitFunc func(spec Spec, logger *slog.Logger) (Transport, error)

var registry = map[string]InitFunc{}

// Add registers a transport constructor under name. Called from a transport
// package's init().
func Add(name string, init InitFunc) {
	registry[name] = init
}

// Get returns the registered constructor for name, if any.
func Get(name string) (InitFunc, bool) {
	init, ok := registry[name]

	return init, ok
}

// Each iterates every registered transport constructor, in no particular
// order — used by table-driven tests that exercise every transport.
func Each(f func(name string, init InitFunc)) {
	for name, init := range registry {
		f(name, init)
	}
}
