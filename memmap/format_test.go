package memmap

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Load and Dump", func() {
	It("round-trips through the text dump format", func() {
		m := NewSparse()
		var line [64]byte
		line[0] = 1
		line[1] = 2
		m.Store(0x1000, line)

		var buf bytes.Buffer
		Expect(Dump(&buf, m)).To(Succeed())

		loaded, err := Load(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Load(0x1000)).To(Equal(line))
	})

	It("rejects a dump missing the _DATA_ header", func() {
		r := strings.NewReader("_META_\nuint8\n")
		_, err := Load(r)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unsupported element type", func() {
		r := strings.NewReader("_META_\nuint16\n_DATA_\n")
		_, err := Load(r)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a data line with the wrong field count", func() {
		r := strings.NewReader("_META_\nuint8\n_DATA_\n0x1000 1 2 3\n")
		_, err := Load(r)
		Expect(err).To(HaveOccurred())
	})

	It("dumps lines sorted by ascending address", func() {
		m := NewSparse()
		m.Store(0x2000, [64]byte{})
		m.Store(0x1000, [64]byte{})

		var buf bytes.Buffer
		Expect(Dump(&buf, m)).To(Succeed())

		out := buf.String()
		Expect(strings.Index(out, "0x0000000000001000")).To(BeNumerically("<", strings.Index(out, "0x0000000000002000")))
	})
})
