// Package memshare implements a memory-port consolidation pass over a
// gate-level netlist.
//
// For every memory in a module the pass applies three transformations
// in order: feedback paths from asynchronous read ports back into write
// ports of the same memory are converted into write-enable conditions;
// write ports addressing the same location in the same clock domain are
// merged while preserving per-bit enables and write priority; and
// adjacent write ports whose enables are provably mutually exclusive
// (by a SAT query over their shared input cone) are merged under a
// selector. Reducing the write-port count is frequently what makes a
// memory mappable onto a physical block at all.
//
// Example usage:
//
//	design, err := rtlil.ReadJSON(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := memshare.Run(design, nil, memshare.Config{}); err != nil {
//	    log.Fatal(err)
//	}
package memshare

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// Config specifies the configuration for a pass run.
type Config struct {
	// Log receives human-readable progress output (memory ids,
	// per-port decisions, merge actions, SAT problem sizes). A nil
	// entry keeps the pass silent.
	Log *logrus.Entry
}

func (c Config) entry() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return logrus.NewEntry(silent)
}

func (c Config) validateSelection(design *rtlil.Design, selection []string) error {
	for _, name := range selection {
		if _, ok := design.Modules[name]; !ok {
			return fmt.Errorf("memshare: no module named %q in design", name)
		}
	}
	return nil
}

// Run applies the pass to every selected module of the design. An empty
// selection selects all modules; naming an unknown module is an error.
// The design is mutated in place.
func Run(design *rtlil.Design, selection []string, cfg Config) error {
	if design == nil {
		return fmt.Errorf("memshare: nil design")
	}
	if err := cfg.validateSelection(design, selection); err != nil {
		return err
	}

	selected := make(map[string]bool, len(selection))
	for _, name := range selection {
		selected[name] = true
	}

	for _, mod := range design.ModulesSorted() {
		if len(selected) > 0 && !selected[mod.Name] {
			continue
		}
		ShareModule(mod, cfg)
	}
	return nil
}

// ShareModule applies the pass to a single module. The caller must hold
// exclusive mutable access to the module for the duration of the call.
func ShareModule(mod *rtlil.Module, cfg Config) {
	newWorker(mod, cfg).run()
}
