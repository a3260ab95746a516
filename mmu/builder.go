package mmu

import "github.com/sarchlab/ndpwalk/memmap"

// Builder builds an MMU, following this corpus's value-receiver
// WithX-chain Builder convention.
type Builder struct {
	mem    memmap.MemoryMap
	ptBase uint64
	cfg    Config
	toMem  ToMemPusher
	ndpID  int
}

// MakeBuilder returns a default Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithMemoryMap sets the functional store the MMU decodes entries from.
func (b Builder) WithMemoryMap(mem memmap.MemoryMap) Builder {
	b.mem = mem
	return b
}

// WithPageTableBase sets the PML4 physical base address.
func (b Builder) WithPageTableBase(ptBase uint64) Builder {
	b.ptBase = ptBase
	return b
}

// WithConfig sets the M2NDPConfig-derived settings the MMU consults.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithToMemQueue sets the owner of the shared to-mem pipeline (normally
// the TLB being built alongside this MMU).
func (b Builder) WithToMemQueue(toMem ToMemPusher) Builder {
	b.toMem = toMem
	return b
}

// WithNDPID sets the NDP unit identifier tagged onto issued page-table
// reads.
func (b Builder) WithNDPID(id int) Builder {
	b.ndpID = id
	return b
}

// Build constructs the MMU.
func (b Builder) Build() *MMU {
	if b.mem == nil {
		panic("mmu: Builder requires WithMemoryMap")
	}
	if b.cfg == nil {
		panic("mmu: Builder requires WithConfig")
	}
	if b.toMem == nil {
		panic("mmu: Builder requires WithToMemQueue")
	}

	return New(b.mem, b.ptBase, b.cfg, b.toMem, b.ndpID)
}
