package telemetry

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Recorder", func() {
	var dbPath string

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "stats.db")
	})

	It("assigns a run id on creation", func() {
		r, err := NewRecorder(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		Expect(r.RunID()).NotTo(BeEmpty())
	})

	It("makes a recorded snapshot readable back as the latest run once flushed", func() {
		r, err := NewRecorder(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		Expect(r.Record(Snapshot{Cycle: 1, Walks: 1, WalkReads: 4, Hits: 1, Fails: 0})).To(Succeed())
		Expect(r.Record(Snapshot{Cycle: 2, Walks: 2, WalkReads: 8, Hits: 2, Fails: 0})).To(Succeed())
		Expect(r.Flush()).To(Succeed())

		runID, s, err := LatestRun(r.DB)
		Expect(err).NotTo(HaveOccurred())
		Expect(runID).To(Equal(r.RunID()))
		Expect(s.Cycle).To(Equal(uint64(2)))
		Expect(s.Walks).To(Equal(uint64(2)))
	})

	It("flushes automatically once the batch size is reached", func() {
		r, err := NewRecorder(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		for i := 0; i < r.batchSize; i++ {
			Expect(r.Record(Snapshot{Cycle: uint64(i)})).To(Succeed())
		}

		Expect(r.pending).To(BeEmpty())
	})

	It("treats Flush with nothing pending as a no-op", func() {
		r, err := NewRecorder(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		Expect(r.Flush()).To(Succeed())
	})

	It("errors when there is no run to report", func() {
		r, err := NewRecorder(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		_, _, err = LatestRun(r.DB)
		Expect(err).To(HaveOccurred())
	})
})
