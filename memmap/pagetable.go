package memmap

// PageTableBuilder constructs a four-level x86-64-style page table inside
// a Sparse memory map, allocating child tables on demand exactly as the
// original simulator's make_pt.py fixture generator does: each new PML4,
// PDPT, or PD entry allocates the next unused page-sized slot after
// Base and links it in with the present|writable flags set.
type PageTableBuilder struct {
	m        *Sparse
	base     uint64
	pageSize uint64
	nextFree uint64

	pdpt map[uint64]uint64
	pd   map[[2]uint64]uint64
	pt   map[[3]uint64]uint64
}

const pteFlags = 0x3 // present | writable

// NewPageTableBuilder starts a builder whose PML4 lives at base. pageSize
// must be a power of two (4096 for the standard 4KB page format this
// core assumes).
func NewPageTableBuilder(m *Sparse, base, pageSize uint64) *PageTableBuilder {
	return &PageTableBuilder{
		m:        m,
		base:     base,
		pageSize: pageSize,
		nextFree: base + pageSize,
		pdpt:     make(map[uint64]uint64),
		pd:       make(map[[2]uint64]uint64),
		pt:       make(map[[3]uint64]uint64),
	}
}

func idxPML4(va uint64) uint64 { return (va >> 39) & 0x1FF }
func idxPDPT(va uint64) uint64 { return (va >> 30) & 0x1FF }
func idxPD(va uint64) uint64   { return (va >> 21) & 0x1FF }
func idxPT(va uint64) uint64   { return (va >> 12) & 0x1FF }

func (b *PageTableBuilder) allocPage() uint64 {
	p := b.nextFree
	b.nextFree += b.pageSize
	return p
}

// Map installs a present|writable mapping from the page
// containing va to the page starting at frame, allocating any
// intermediate PDPT/PD/PT tables that do not already exist.
func (b *PageTableBuilder) Map(va, frame uint64) {
	pml4i, pdpti, pdi, pti := idxPML4(va), idxPDPT(va), idxPD(va), idxPT(va)

	pdptBase, ok := b.pdpt[pml4i]
	if !ok {
		pdptBase = b.allocPage()
		b.pdpt[pml4i] = pdptBase
		b.writeEntryAtIndex(b.base, pml4i, pdptBase|pteFlags)
	}

	pdKey := [2]uint64{pml4i, pdpti}
	pdBase, ok := b.pd[pdKey]
	if !ok {
		pdBase = b.allocPage()
		b.pd[pdKey] = pdBase
		b.writeEntryAtIndex(pdptBase, pdpti, pdBase|pteFlags)
	}

	ptKey := [3]uint64{pml4i, pdpti, pdi}
	ptBase, ok := b.pt[ptKey]
	if !ok {
		ptBase = b.allocPage()
		b.pt[ptKey] = ptBase
		b.writeEntryAtIndex(pdBase, pdi, ptBase|pteFlags)
	}

	b.writeEntryAtIndex(ptBase, pti, frame|pteFlags)
}

// writeEntryAtIndex writes an 8-byte entry at tableBase + index*8 into
// the one 64-byte line that holds it. Entries are always 8-byte aligned
// so they never straddle a line.
func (b *PageTableBuilder) writeEntryAtIndex(tableBase, index, value uint64) {
	entryAddr := tableBase + index*8
	lineAddr := entryAddr &^ 0x3F
	off := int(entryAddr - lineAddr)
	b.m.WriteQword(lineAddr, off, value)
}

// Base returns the PML4 physical base address this builder writes to.
func (b *PageTableBuilder) Base() uint64 { return b.base }
