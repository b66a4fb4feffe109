// Package config loads the tunables pkg/driver.Runtime needs before it
// can build a VM: a globals-table size hint, a table size hint, and
// whether to run an extra Collect after each Execute — see DESIGN.md
// for why YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig tunes a driver.Runtime. Every field has a sane zero
// value via Default(), so an embedder that doesn't care about tuning
// can skip config entirely.
type RuntimeConfig struct {
	// GlobalsTableSizeHint presizes the runtime's global table.
	GlobalsTableSizeHint int `yaml:"globals_table_size_hint"`
	// TableSizeHint is loaded and defaulted like the other fields, but
	// the runtime does not read it: OpAlloc(AllocTable) always allocates
	// through Heap.AllocTable(0), which newTable sizes to its default.
	TableSizeHint int `yaml:"table_size_hint"`
	// GCAutoCollect runs Heap.Collect() after every top-level Execute
	// call in addition to the mandatory once-per-execute pass the VM
	// already performs, useful for embedders that never call Collect()
	// on their own schedule.
	GCAutoCollect bool `yaml:"gc_auto_collect"`
}

// Default returns the configuration driver.New uses when the
// embedder supplies none.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		GlobalsTableSizeHint: 32,
		TableSizeHint:        8,
		GCAutoCollect:        true,
	}
}

// Load reads a YAML RuntimeConfig from path, filling any field the
// document omits from Default().
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
