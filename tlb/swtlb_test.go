package tlb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("softwareTLB", func() {
	It("misses on an unseen VPN", func() {
		s := newSoftwareTLB(2)
		_, ok := s.Lookup(1)
		Expect(ok).To(BeFalse())
	})

	It("hits after an install", func() {
		s := newSoftwareTLB(2)
		s.Install(1, 0x10)

		ppn, ok := s.Lookup(1)
		Expect(ok).To(BeTrue())
		Expect(ppn).To(Equal(uint64(0x10)))
	})

	It("evicts the least-recently-touched entry at capacity", func() {
		s := newSoftwareTLB(2)
		s.Install(1, 0x10)
		s.Install(2, 0x20)
		s.Install(3, 0x30) // evicts 1, the LRU tail

		_, ok := s.Lookup(1)
		Expect(ok).To(BeFalse())

		_, ok = s.Lookup(2)
		Expect(ok).To(BeTrue())
	})

	It("promotes a looked-up entry to MRU, sparing it from eviction", func() {
		s := newSoftwareTLB(2)
		s.Install(1, 0x10)
		s.Install(2, 0x20)

		_, ok := s.Lookup(1) // touch 1 to MRU; 2 becomes LRU
		Expect(ok).To(BeTrue())

		s.Install(3, 0x30) // should evict 2, not 1

		_, ok = s.Lookup(1)
		Expect(ok).To(BeTrue())
		_, ok = s.Lookup(2)
		Expect(ok).To(BeFalse())
	})

	It("never doubles an entry when re-installed", func() {
		s := newSoftwareTLB(4)
		s.Install(1, 0x10)
		s.Install(1, 0x11)

		Expect(s.Len()).To(Equal(1))
		ppn, _ := s.Lookup(1)
		Expect(ppn).To(Equal(uint64(0x11)))
	})
})
