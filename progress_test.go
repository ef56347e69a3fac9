package fxfer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("progressTracker", func() {
	var fractions []float64

	BeforeEach(func() {
		fractions = nil
	})

	onProgress := func() ProgressUpdatedCallback {
		return func(f float64) { fractions = append(fractions, f) }
	}

	It("reports a monotonically increasing fraction as blocks complete", func() {
		count := 4
		t := newProgressTracker(&count, onProgress())
		t.blockDone()
		t.blockDone()
		t.blockDone()
		t.blockDone()
		Expect(fractions).To(Equal([]float64{0.25, 0.5, 0.75, 1.0}))
	})

	It("emits the final 1.0 exactly once on finish", func() {
		count := 2
		t := newProgressTracker(&count, onProgress())
		t.blockDone()
		t.finish()
		Expect(fractions).To(Equal([]float64{0.5, 1.0}))
	})

	It("suppresses every callback while the block count is unknown", func() {
		t := newProgressTracker(nil, onProgress())
		t.blockDone()
		t.blockDone()
		Expect(fractions).To(BeEmpty())
	})

	It("resumes reporting once the count is frozen at end-of-stream", func() {
		t := newProgressTracker(nil, onProgress())
		t.blockDone()
		t.freeze(3)
		t.blockDone()
		Expect(fractions).To(Equal([]float64{2.0 / 3.0}))
	})

	It("emits no final callback if the count never froze", func() {
		t := newProgressTracker(nil, onProgress())
		t.finish()
		Expect(fractions).To(BeEmpty())
	})

	It("does nothing when no callback is registered", func() {
		count := 1
		t := newProgressTracker(&count, nil)
		Expect(func() { t.blockDone(); t.finish() }).NotTo(Panic())
	})
})
