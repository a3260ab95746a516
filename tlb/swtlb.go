package tlb

import "container/list"

// swEntry is the value stored at each softwareTLB list element.
type swEntry struct {
	vpn uint64
	ppn uint64
}

// softwareTLB is the VPN-keyed LRU cache backing TLB hits, grounded on
// this corpus's own container/list-plus-map LRU idiom (see
// sarchlab-akita's page-table process cache) rather than a hand-rolled
// ring buffer. MRU sits at the front of order.
type softwareTLB struct {
	capacity int
	order    *list.List
	index    map[uint64]*list.Element
}

func newSoftwareTLB(capacity int) *softwareTLB {
	if capacity <= 0 {
		capacity = 1024
	}

	return &softwareTLB{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[uint64]*list.Element),
	}
}

// Len reports how many VPNs are currently cached.
func (s *softwareTLB) Len() int { return s.order.Len() }

// Lookup returns the PPN for vpn and touches it to MRU on a hit.
func (s *softwareTLB) Lookup(vpn uint64) (ppn uint64, ok bool) {
	elem, found := s.index[vpn]
	if !found {
		return 0, false
	}

	s.order.MoveToFront(elem)

	return elem.Value.(*swEntry).ppn, true
}

// Install records vpn -> ppn as MRU, evicting the LRU tail if the
// cache is over capacity. Re-installing an already-present VPN updates
// its PPN and touches it to MRU rather than duplicating the entry.
func (s *softwareTLB) Install(vpn, ppn uint64) {
	if elem, found := s.index[vpn]; found {
		elem.Value.(*swEntry).ppn = ppn
		s.order.MoveToFront(elem)
		return
	}

	elem := s.order.PushFront(&swEntry{vpn: vpn, ppn: ppn})
	s.index[vpn] = elem

	if s.order.Len() > s.capacity {
		tail := s.order.Back()
		s.order.Remove(tail)
		delete(s.index, tail.Value.(*swEntry).vpn)
	}
}
