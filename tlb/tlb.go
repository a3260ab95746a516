// Package tlb implements the translation-lookaside-buffer front end:
// hit-latency modeling, a software LRU cache, and dispatch of misses to
// the paired mmu.MMU. It is the component the enclosing simulator ticks
// once per cycle via Cycle and BankAccessCycle.
package tlb

import (
	"math/bits"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/ndpwalk/memfetch"
	"github.com/sarchlab/ndpwalk/mmu"
	"github.com/sarchlab/ndpwalk/queueing"
)

// Config is the subset of M2NDPConfig the TLB needs. It structurally
// satisfies mmu.Config too, so a single config type can build both
// halves of the pair without an adapter.
type Config interface {
	PageSize() uint64
	ChannelIndex(pa uint64) int
	PTWIssueLatency() int
	MaxOutstandingWalks() int
	TLBHitLatency() int
	RequestQueueSize() int
	SWTLBCapacity() int
	IdealTLB() bool
}

// TLB serves translation requests from a software LRU, dispatching
// misses to its paired MMU, and buffering completions for pickup by
// the processing unit.
type TLB struct {
	cfg Config

	reqQ     *queueing.DelayQueue[*memfetch.MemFetch]
	sw       *softwareTLB
	m        *mmu.MMU
	toMem    sim.Buffer // shared to-mem pipeline; MMU pushes here too
	finished sim.Buffer // of *memfetch.MemFetch

	idealTLB bool
	pageOff  uint64
	pageSh   uint
}

// New constructs a TLB on the given shared to-mem pipeline. It does not
// create or attach an MMU: Builder builds the paired MMU and binds it,
// so Builder is the intended entry point, and a TLB from New alone has
// no MMU to tick, submit to, or deliver fills to.
func New(cfg Config, toMem sim.Buffer, finishedCapacity int) *TLB {
	pageSize := cfg.PageSize()

	t := &TLB{
		cfg:      cfg,
		reqQ:     queueing.NewDelayQueue[*memfetch.MemFetch]("tlb_request_q", cfg.RequestQueueSize()),
		sw:       newSoftwareTLB(cfg.SWTLBCapacity()),
		toMem:    toMem,
		finished: sim.NewBuffer("FinishedQueue", finishedCapacity),
		idealTLB: cfg.IdealTLB(),
		pageOff:  pageSize - 1,
		pageSh:   uint(bits.TrailingZeros64(pageSize)),
	}

	return t
}

// bindMMU attaches the paired MMU. Called exactly once, by Builder,
// immediately after both halves are constructed.
func (t *TLB) bindMMU(m *mmu.MMU) { t.m = m }

// canonicalVA sign-extends bit 47 through bits 48-63, per the x86-64
// canonical-address convention. Non-canonical inputs collapse onto
// their canonical VPN rather than producing a spurious distinct entry.
func canonicalVA(va uint64) uint64 {
	const signBit = uint64(1) << 47
	const highMask = uint64(0xFFFF000000000000)
	if va&signBit != 0 {
		return va | highMask
	}
	return va &^ highMask
}

func (t *TLB) vpnOf(va uint64) uint64 { return canonicalVA(va) >> t.pageSh }

func (t *TLB) pageOffsetOf(va uint64) uint64 { return va & t.pageOff }

// Access enqueues mf for translation, delayed by the configured hit
// latency (no delay in ideal-TLB mode). The caller must check Full
// first; Access does not itself apply backpressure.
func (t *TLB) Access(mf *memfetch.MemFetch) {
	delay := t.cfg.TLBHitLatency()
	if t.idealTLB {
		delay = 0
	}
	t.reqQ.Push(mf, delay)
}

// Full reports whether the request queue (plus extra pending items) is
// at the configured request-queue size.
func (t *TLB) Full(extra int) bool {
	return t.reqQ.Len()+extra >= t.cfg.RequestQueueSize()
}

// PushMemReq enqueues mf onto the shared to-mem pipeline. It is the
// MMU's only route to the memory system; the TLB itself issues no line
// reads of its own through it.
func (t *TLB) PushMemReq(mf *memfetch.MemFetch) bool {
	if !t.toMem.CanPush() {
		return false
	}
	t.toMem.Push(mf)
	return true
}

// ToMemBuffer exposes the shared to-mem pipeline so a driver can stand
// in for the memory system this core treats as an external
// collaborator: pop a pushed read and deliver it back through Fill.
func (t *TLB) ToMemBuffer() sim.Buffer { return t.toMem }

// WaitingForFill reports whether the paired MMU is awaiting mf. This
// TLB keeps no hardware cache of its own line reads, so the MMU is the
// only claimant.
func (t *TLB) WaitingForFill(mf *memfetch.MemFetch) bool {
	return t.m.WaitingForFill(mf)
}

// Fill delivers a previously-issued line read back to whichever
// collaborator is waiting for it. A fill nobody claims is an
// UnknownFill: discarded defensively.
func (t *TLB) Fill(mf *memfetch.MemFetch) {
	if t.m.WaitingForFill(mf) {
		t.m.OnMemFill(mf)
		return
	}
}

// SetIdealTlb forces every access onto the zero-latency identity hit
// path, bypassing both the software LRU and the MMU.
func (t *TLB) SetIdealTlb() { t.idealTLB = true }

// DataReady reports whether a finished translation is ready for
// pickup.
func (t *TLB) DataReady() bool { return t.finished.Size() > 0 }

// GetData peeks the oldest finished request without removing it.
func (t *TLB) GetData() *memfetch.MemFetch {
	v := t.finished.Peek()
	if v == nil {
		return nil
	}
	return v.(*memfetch.MemFetch)
}

// PopData removes and returns the oldest finished request.
func (t *TLB) PopData() *memfetch.MemFetch {
	v := t.finished.Pop()
	if v == nil {
		panic("tlb: PopData on empty finished queue")
	}
	return v.(*memfetch.MemFetch)
}

// Cycle ticks the request delay queue and the paired MMU.
func (t *TLB) Cycle() (madeProgress bool) {
	if t.reqQ.Tick() {
		madeProgress = true
	}
	if t.m.Cycle() {
		madeProgress = true
	}
	return madeProgress
}

// BankAccessCycle performs at most one translation step: it drains as
// many MMU completions as the finished queue allows, then examines the
// head of the request queue.
func (t *TLB) BankAccessCycle() {
	t.drainCompletions()
	t.stepRequestQueue()
}

func (t *TLB) drainCompletions() {
	for t.m.HasCompleted() {
		if !t.finished.CanPush() {
			return
		}

		c := t.m.PopCompleted()
		t.sw.Install(t.vpnOf(c.VA), c.PA>>t.pageSh)
		t.finished.Push(c.MF)
	}
}

func (t *TLB) stepRequestQueue() {
	mf, ready := t.reqQ.Top()
	if !ready {
		return
	}

	if t.idealTLB {
		if !t.finished.CanPush() {
			return
		}
		t.finished.Push(mf)
		t.reqQ.Pop()
		return
	}

	vpn := t.vpnOf(mf.Addr)
	if ppn, hit := t.sw.Lookup(vpn); hit {
		if !t.finished.CanPush() {
			return
		}

		pa := (ppn << t.pageSh) | t.pageOffsetOf(mf.Addr)
		mf.Addr = pa
		mf.Channel = t.cfg.ChannelIndex(pa)

		t.finished.Push(mf)
		t.reqQ.Pop()
		return
	}

	if !t.m.CanSubmit() {
		return
	}

	t.m.Submit(mf)
	t.reqQ.Pop()
}

// Outstanding reports whether any request, walk, or completion is
// still moving through the pipeline. A driver loop can use this to
// know when it is safe to stop ticking once no more input remains.
func (t *TLB) Outstanding() bool {
	return !t.reqQ.Empty() || t.m.InflightCount() > 0 || t.toMem.Size() > 0 || t.m.HasCompleted()
}

// Stats returns the paired MMU's counters.
func (t *TLB) Stats() mmu.Stats { return t.m.Stats() }
