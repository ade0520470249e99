package memshare

import (
	"fmt"
	"sync"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// PassFunc executes a registered pass over a design. The args are the
// pass's command arguments (for memory_share: an optional module
// selection).
type PassFunc func(design *rtlil.Design, args []string, cfg Config) error

type passEntry struct {
	help string
	fn   PassFunc
}

// Registry is a process-wide named-pass registry. Passes are registered
// explicitly from the program entry point rather than from package
// initializers, so a host embedding the library controls exactly which
// passes exist.
type Registry struct {
	mu     sync.Mutex
	passes map[string]passEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{passes: make(map[string]passEntry)}
}

// DefaultRegistry is the registry the command-line tools use.
var DefaultRegistry = NewRegistry()

// Register adds a named pass. Registering a name twice is an error.
func (r *Registry) Register(name, help string, fn PassFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.passes[name]; ok {
		return fmt.Errorf("memshare: pass %q already registered", name)
	}
	r.passes[name] = passEntry{help: help, fn: fn}
	return nil
}

// Help returns the help text of a registered pass.
func (r *Registry) Help(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.passes[name]
	return e.help, ok
}

// Run executes a registered pass by name.
func (r *Registry) Run(name string, design *rtlil.Design, args []string, cfg Config) error {
	r.mu.Lock()
	e, ok := r.passes[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("memshare: no pass named %q", name)
	}
	return e.fn(design, args, cfg)
}

const memorySharePassName = "memory_share"

const memoryShareHelp = `memory_share [selection]

This pass merges share-able memory ports into single memory ports. The
optional selection is a list of module names; all modules are processed
when it is empty.`

// RegisterMemoryShare registers the memory_share pass with the default
// registry. Call once from the program entry point.
func RegisterMemoryShare() error {
	return DefaultRegistry.Register(memorySharePassName, memoryShareHelp,
		func(design *rtlil.Design, args []string, cfg Config) error {
			cfg.entry().Info("Executing MEMORY_SHARE pass (consolidating memrd/memwr cells).")
			return Run(design, args, cfg)
		})
}
