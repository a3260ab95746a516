package tlb

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/ndpwalk/memmap"
	"github.com/sarchlab/ndpwalk/mmu"
)

// defaultFinishedQueueCapacity bounds the finished queue when a
// Builder caller does not override it via WithFinishedQueueCapacity.
const defaultFinishedQueueCapacity = 256

// Builder builds a TLB and its paired MMU together, following this
// corpus's value-receiver WithX-chain convention. There is no
// SetMMU/BindTLB: the pair is born wired.
type Builder struct {
	cfg              Config
	mem              memmap.MemoryMap
	ptBase           uint64
	ndpID            int
	toMem            sim.Buffer
	finishedCapacity int
}

// MakeBuilder returns a default Builder.
func MakeBuilder() Builder {
	return Builder{finishedCapacity: defaultFinishedQueueCapacity}
}

// WithConfig sets the shared M2NDPConfig-derived settings.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithMemoryMap sets the functional store the paired MMU decodes
// page-table entries from.
func (b Builder) WithMemoryMap(mem memmap.MemoryMap) Builder {
	b.mem = mem
	return b
}

// WithPageTableBase sets the PML4 physical base address.
func (b Builder) WithPageTableBase(ptBase uint64) Builder {
	b.ptBase = ptBase
	return b
}

// WithNDPID sets the NDP unit identifier tagged onto issued page-table
// reads.
func (b Builder) WithNDPID(id int) Builder {
	b.ndpID = id
	return b
}

// WithToMemPipeline sets the bounded FIFO the MMU's page-walk reads
// are pushed onto through TLB.PushMemReq. If unset, Build allocates a
// private one sized off RequestQueueSize.
func (b Builder) WithToMemPipeline(toMem sim.Buffer) Builder {
	b.toMem = toMem
	return b
}

// WithFinishedQueueCapacity overrides the finished-queue bound.
func (b Builder) WithFinishedQueueCapacity(n int) Builder {
	b.finishedCapacity = n
	return b
}

// Build constructs the MMU and TLB together and wires them: the TLB's
// PushMemReq becomes the MMU's to-mem sink, and the MMU is bound into
// the TLB before either is returned.
func (b Builder) Build() *TLB {
	if b.cfg == nil {
		panic("tlb: Builder requires WithConfig")
	}
	if b.mem == nil {
		panic("tlb: Builder requires WithMemoryMap")
	}

	if b.toMem == nil {
		b.toMem = sim.NewBuffer("ToMem", b.cfg.RequestQueueSize())
	}

	t := New(b.cfg, b.toMem, b.finishedCapacity)

	m := mmu.MakeBuilder().
		WithMemoryMap(b.mem).
		WithPageTableBase(b.ptBase).
		WithConfig(b.cfg).
		WithToMemQueue(t).
		WithNDPID(b.ndpID).
		Build()

	t.bindMMU(m)

	return t
}
