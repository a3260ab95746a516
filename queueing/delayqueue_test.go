package queueing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DelayQueue", func() {
	It("is ready immediately for a zero delay", func() {
		q := NewDelayQueue[int]("q", -1)
		q.Push(1, 0)

		item, ready := q.Top()
		Expect(ready).To(BeTrue())
		Expect(item).To(Equal(1))
	})

	It("becomes ready only after Tick has decremented enough", func() {
		q := NewDelayQueue[int]("q", -1)
		q.Push(1, 2)

		_, ready := q.Top()
		Expect(ready).To(BeFalse())

		q.Tick()
		_, ready = q.Top()
		Expect(ready).To(BeFalse())

		q.Tick()
		_, ready = q.Top()
		Expect(ready).To(BeTrue())
	})

	It("only advances the head item, not items behind it", func() {
		q := NewDelayQueue[int]("q", -1)
		q.Push(1, 1)
		q.Push(2, 1)

		q.Tick()
		item, ready := q.Top()
		Expect(ready).To(BeTrue())
		Expect(item).To(Equal(1))

		q.Pop()
		_, ready = q.Top()
		Expect(ready).To(BeFalse())
	})

	It("reports full at capacity", func() {
		q := NewDelayQueue[int]("q", 1)
		Expect(q.Push(1, 0)).To(BeTrue())
		Expect(q.Full()).To(BeTrue())
		Expect(q.Push(2, 0)).To(BeFalse())
	})

	It("is never full when unbounded", func() {
		q := NewDelayQueue[int]("q", -1)
		for i := 0; i < 1000; i++ {
			Expect(q.Push(i, 0)).To(BeTrue())
		}
		Expect(q.Full()).To(BeFalse())
	})

	It("panics popping an empty queue", func() {
		q := NewDelayQueue[int]("q", -1)
		Expect(func() { q.Pop() }).To(Panic())
	})

	It("reports Empty correctly", func() {
		q := NewDelayQueue[int]("q", -1)
		Expect(q.Empty()).To(BeTrue())
		q.Push(1, 0)
		Expect(q.Empty()).To(BeFalse())
	})
})
