package memmap

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sparse", func() {
	var m *Sparse

	BeforeEach(func() {
		m = NewSparse()
	})

	It("reads back an unwritten line as all zeros", func() {
		Expect(m.Load(0x1000)).To(Equal([64]byte{}))
	})

	It("round-trips a stored line", func() {
		var line [64]byte
		line[0] = 0xAB
		line[63] = 0xCD
		m.Store(0x2000, line)

		Expect(m.Load(0x2000)).To(Equal(line))
	})

	It("panics on a misaligned load", func() {
		Expect(func() { m.Load(0x1001) }).To(Panic())
	})

	It("panics on a misaligned store", func() {
		Expect(func() { m.Store(0x1001, [64]byte{}) }).To(Panic())
	})

	Describe("WriteQword", func() {
		It("read-modify-writes an 8-byte little-endian value", func() {
			m.WriteQword(0x3000, 8, 0x0102030405060708)

			line := m.Load(0x3000)
			Expect(line[8]).To(Equal(byte(0x08)))
			Expect(line[15]).To(Equal(byte(0x01)))
		})

		It("preserves the rest of the line", func() {
			var line [64]byte
			line[0] = 0x77
			m.Store(0x4000, line)

			m.WriteQword(0x4000, 16, 0xFF)

			Expect(m.Load(0x4000)[0]).To(Equal(byte(0x77)))
		})

		It("panics when the qword would cross the line boundary", func() {
			Expect(func() { m.WriteQword(0x5000, 60, 1) }).To(Panic())
		})
	})
})
