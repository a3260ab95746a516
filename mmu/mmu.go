// Package mmu implements the asynchronous four-level x86-64-style page
// walk described by this core's address-translation spec. An MMU is
// stateless with respect to translation inputs; it only maintains
// in-flight walk contexts and an issue-throttle queue.
package mmu

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/ndpwalk/memfetch"
	"github.com/sarchlab/ndpwalk/memmap"
	"github.com/sarchlab/ndpwalk/queueing"
)

const lineSize = 64

// pageWalkLevel counts down from the PML4 (level 4) to the PTE (level 1).
type pageWalkLevel int

const (
	levelPML4 pageWalkLevel = 4
	levelPDPT pageWalkLevel = 3
	levelPD   pageWalkLevel = 2
	levelPTE  pageWalkLevel = 1
)

// walkContext is the per-walk state created on a TLB miss and destroyed
// on any terminal condition. It is owned exclusively by the MMU for its
// lifetime.
type walkContext struct {
	orig    *memfetch.MemFetch
	va      uint64
	isWrite bool
	level   pageWalkLevel
	base    uint64 // physical base of the table 'level' indexes into
	paOut   uint64
}

// Completed is a walk completion the TLB drains via PopCompleted.
type Completed struct {
	MF *memfetch.MemFetch
	VA uint64
	PA uint64
}

// Stats holds the MMU's monotonically increasing counters.
type Stats struct {
	Walks     uint64
	WalkReads uint64
	Hits      uint64
	Fails     uint64
}

// ToMemPusher is implemented by whatever owns the shared to-mem pipeline
// (the TLB in this core). Submit/OnMemFill never talk to the memory
// system directly; they only ever go through this interface, so the MMU
// and TLB can be built together without either owning the other.
type ToMemPusher interface {
	PushMemReq(mf *memfetch.MemFetch) bool
}

// Config is the subset of M2NDPConfig the MMU needs.
type Config interface {
	PageSize() uint64
	ChannelIndex(pa uint64) int
	PTWIssueLatency() int
	MaxOutstandingWalks() int
}

// MMU performs asynchronous four-level page walks, issuing each
// page-table line read through a ToMemPusher and composing a physical
// address on completion.
type MMU struct {
	mem     memmap.MemoryMap
	cfg     Config
	toMem   ToMemPusher
	ptBase  uint64
	ndpID   int
	pageOff uint64 // page_size - 1

	issueQ   *queueing.DelayQueue[*memfetch.MemFetch]
	inflight map[*memfetch.MemFetch]*walkContext
	done     sim.Buffer // of Completed

	stats Stats
}

// New constructs an MMU. toMem is typically the owning TLB; it is
// supplied at construction (not via a later setter) per this core's
// construct-together convention.
func New(mem memmap.MemoryMap, ptBase uint64, cfg Config, toMem ToMemPusher, ndpID int) *MMU {
	m := &MMU{
		mem:      mem,
		cfg:      cfg,
		toMem:    toMem,
		ptBase:   ptBase,
		ndpID:    ndpID,
		pageOff:  cfg.PageSize() - 1,
		issueQ:   queueing.NewDelayQueue[*memfetch.MemFetch]("mmu_issue_q", -1),
		inflight: make(map[*memfetch.MemFetch]*walkContext),
		done:     sim.NewBuffer("MMUCompleted", 1<<20),
	}

	return m
}

func idxPML4(va uint64) uint64 { return (va >> 39) & 0x1FF }
func idxPDPT(va uint64) uint64 { return (va >> 30) & 0x1FF }
func idxPD(va uint64) uint64   { return (va >> 21) & 0x1FF }
func idxPT(va uint64) uint64   { return (va >> 12) & 0x1FF }

func indexForLevel(level pageWalkLevel, va uint64) uint64 {
	switch level {
	case levelPML4:
		return idxPML4(va)
	case levelPDPT:
		return idxPDPT(va)
	case levelPD:
		return idxPD(va)
	case levelPTE:
		return idxPT(va)
	default:
		panic("mmu: invalid page walk level")
	}
}

func nextLevel(level pageWalkLevel) pageWalkLevel { return level - 1 }

// alignedEntryAddr computes the aligned 64-byte line address and in-line
// byte offset for the 8-byte entry at tableBase + index*8. It panics if
// the entry would straddle a 64-byte line, which can never happen for
// correctly 8-byte-aligned entries — the MisalignedEntry invariant
// described in the spec's error handling design.
func alignedEntryAddr(tableBase, index uint64) (lineAddr uint64, off int) {
	entryAddr := tableBase + index*8
	lineAddr = entryAddr &^ (lineSize - 1)
	off = int(entryAddr - lineAddr)

	if off > lineSize-8 {
		log.Panicf("mmu: page-table entry at 0x%x crosses a 64-byte line", entryAddr)
	}

	return lineAddr, off
}

// readEntry loads the containing 64-byte line via the functional
// MemoryMap and extracts the 8 little-endian bytes at the in-line
// offset. It is the single entry-decoding routine both Translate and
// OnMemFill call, parameterized by level rather than duplicated per
// level. Every call increments WalkReads: the spec resolves the
// walk_reads counter to mean functional entry decodes.
func (m *MMU) readEntry(tableBase uint64, level pageWalkLevel, va uint64) uint64 {
	lineAddr, off := alignedEntryAddr(tableBase, indexForLevel(level, va))
	line := m.mem.Load(lineAddr)
	m.stats.WalkReads++

	var val uint64
	for i := 0; i < 8; i++ {
		val |= uint64(line[off+i]) << (8 * i)
	}

	return val
}

func present(entry uint64) bool { return entry&0x1 != 0 }

func tableBaseOf(entry uint64) uint64 { return entry &^ 0xFFF }

func pageOffset(va, pageOff uint64) uint64 { return va & pageOff }

// Translate is the synchronous functional path: it reads all four
// page-table entries through the functional MemoryMap and returns the
// physical address, or false if any level's present bit is clear. It
// never touches timing state (only the Stats counters) and serves
// functional, warm-up style lookups; the TLB's ideal mode bypasses the
// MMU and does not call it.
func (m *MMU) Translate(va uint64, isWrite bool) (pa uint64, ok bool) {
	base := m.ptBase
	for level := levelPML4; level >= levelPTE; level = nextLevel(level) {
		entry := m.readEntry(base, level, va)
		if !present(entry) {
			m.stats.Fails++
			return 0, false
		}
		base = tableBaseOf(entry)
	}

	m.stats.Hits++

	return base | pageOffset(va, m.pageOff), true
}

// InflightCount returns the number of walks currently awaiting a fill.
func (m *MMU) InflightCount() int { return len(m.inflight) }

// WaitingForFill reports whether mf is a page-table line read this MMU
// issued and is still waiting to have delivered back via OnMemFill.
func (m *MMU) WaitingForFill(mf *memfetch.MemFetch) bool {
	_, ok := m.inflight[mf]
	return ok
}

// CanSubmit reports whether a call to Submit right now would actually
// start a walk rather than silently no-op against the outstanding-walk
// cap. Callers that need to retry a submission rather than lose it
// (the TLB's miss path) must check this before popping the request
// that would be submitted.
func (m *MMU) CanSubmit() bool {
	max := m.cfg.MaxOutstandingWalks()
	return max <= 0 || len(m.inflight) < max
}

// Submit begins an asynchronous walk for the VA carried by origMF. If
// MaxOutstandingWalks is positive and the inflight map is already at
// that limit, Submit is a no-op and the caller is expected to retry on
// a later cycle.
func (m *MMU) Submit(origMF *memfetch.MemFetch) {
	if max := m.cfg.MaxOutstandingWalks(); max > 0 && len(m.inflight) >= max {
		return
	}

	w := &walkContext{
		orig:    origMF,
		va:      origMF.Addr,
		isWrite: origMF.Write(),
		level:   levelPML4,
		base:    m.ptBase,
	}

	lineAddr, _ := alignedEntryAddr(w.base, idxPML4(w.va))

	m.stats.Walks++
	m.issuePTRead(w, lineAddr)
}

func (m *MMU) issuePTRead(w *walkContext, lineAddr uint64) {
	mf := memfetch.NewPageTableRead(w.orig, lineAddr, m.ndpID)
	mf.Channel = m.cfg.ChannelIndex(lineAddr)

	m.inflight[mf] = w
	m.issueQ.Push(mf, m.cfg.PTWIssueLatency())
}

// OnMemFill is notified by the TLB when a previously issued line-read
// MemFetch returns. The line-read MemFetch is consumed here; the
// original user request is not. Exactly one functional entry decode
// happens per fill — the WalkContext carries the current level's table
// base forward so ancestor levels are never re-derived, keeping
// WalkReads at exactly one increment per walked level.
func (m *MMU) OnMemFill(mf *memfetch.MemFetch) {
	w, ok := m.inflight[mf]
	if !ok {
		// UnknownFill: not ours, discard defensively.
		return
	}
	delete(m.inflight, mf)

	entry := m.readEntry(w.base, w.level, w.va)
	if !present(entry) {
		m.stats.Fails++
		return
	}

	if w.level == levelPTE {
		m.finishWalk(w, tableBaseOf(entry))
		return
	}

	w.level = nextLevel(w.level)
	w.base = tableBaseOf(entry)
	lineAddr, _ := alignedEntryAddr(w.base, indexForLevel(w.level, w.va))
	m.issuePTRead(w, lineAddr)
}

func (m *MMU) finishWalk(w *walkContext, frame uint64) {
	pa := frame | pageOffset(w.va, m.pageOff)
	w.paOut = pa

	w.orig.Addr = pa
	w.orig.Channel = m.cfg.ChannelIndex(pa)

	m.stats.Hits++
	m.done.Push(Completed{MF: w.orig, VA: w.va, PA: pa})
}

// Cycle ticks the issue queue and, while it holds ready items, attempts
// to push each to the to-mem pipeline. It stops at the first push that
// fails so ordering within the queue is preserved.
func (m *MMU) Cycle() (madeProgress bool) {
	if m.issueQ.Tick() {
		madeProgress = true
	}

	for {
		mf, ready := m.issueQ.Top()
		if !ready {
			break
		}

		if !m.toMem.PushMemReq(mf) {
			break
		}

		m.issueQ.Pop()
		madeProgress = true
	}

	return madeProgress
}

// HasCompleted reports whether a walk completion is ready for pickup.
func (m *MMU) HasCompleted() bool { return m.done.Size() > 0 }

// PopCompleted removes and returns the oldest walk completion.
func (m *MMU) PopCompleted() Completed {
	v := m.done.Pop()
	if v == nil {
		panic("mmu: PopCompleted on empty completed queue")
	}

	return v.(Completed)
}

// Stats returns a snapshot of the MMU's counters.
func (m *MMU) Stats() Stats { return m.stats }
