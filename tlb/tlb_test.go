package tlb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/ndpwalk/memfetch"
	"github.com/sarchlab/ndpwalk/memmap"
)

var _ = Describe("TLB", func() {
	var (
		cfg *fakeConfig
		mem *memmap.Sparse
		tl  *TLB
	)

	BeforeEach(func() {
		cfg = newFakeConfig()
		cfg.queueSize = 2
		mem = memmap.NewSparse()
		tl = buildTLB(cfg, mem)
	})

	Describe("Full", func() {
		It("is not full below the configured request-queue size", func() {
			Expect(tl.Full(0)).To(BeFalse())
		})

		It("is full once depth plus extra reaches the configured size", func() {
			tl.Access(&memfetch.MemFetch{Addr: 0x1000})
			Expect(tl.Full(1)).To(BeTrue())
		})
	})

	Describe("PushMemReq", func() {
		It("accepts while the to-mem pipeline has room", func() {
			Expect(tl.PushMemReq(&memfetch.MemFetch{})).To(BeTrue())
		})

		It("rejects once the to-mem pipeline is at capacity", func() {
			for i := 0; i < cfg.queueSize; i++ {
				Expect(tl.PushMemReq(&memfetch.MemFetch{})).To(BeTrue())
			}
			Expect(tl.PushMemReq(&memfetch.MemFetch{})).To(BeFalse())
		})
	})

	Describe("Fill", func() {
		It("discards a fill nobody is waiting for", func() {
			Expect(func() { tl.Fill(&memfetch.MemFetch{}) }).NotTo(Panic())
		})
	})

	Describe("canonicalVA", func() {
		It("leaves an already-canonical low address unchanged", func() {
			Expect(canonicalVA(0x1000)).To(Equal(uint64(0x1000)))
		})

		It("sign-extends a non-canonical high VA to the same VPN as its canonical form", func() {
			nonCanonical := uint64(0x0001_0000_0000_1000)
			canonical := uint64(0x0000_0000_0000_1000)

			Expect(canonicalVA(nonCanonical) >> 12).To(Equal(canonicalVA(canonical) >> 12))
		})

		It("sign-extends bits 48-63 when bit 47 is set", func() {
			va := uint64(0x0000_8000_0000_1000)

			Expect(canonicalVA(va)).To(Equal(uint64(0xFFFF_8000_0000_1000)))
		})
	})

	Describe("WaitingForFill", func() {
		It("delegates to the paired MMU", func() {
			Expect(tl.WaitingForFill(&memfetch.MemFetch{})).To(BeFalse())
		})
	})
})
