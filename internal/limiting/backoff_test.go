package limiting_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
)

var _ = Describe("BackoffPolicy", func() {
	policy := limiting.BackoffPolicy{
		Base:      2 * time.Second,
		Cap:       60 * time.Second,
		MaxJitter: time.Second,
	}

	Describe("Delay()", func() {
		It("should double per attempt with jitter below the bound", func() {
			for attempt := 0; attempt < 5; attempt++ {
				expected := time.Duration(1<<attempt) * 2 * time.Second
				for i := 0; i < 10; i++ {
					d := policy.Delay(attempt)
					Expect(d).To(BeNumerically(">=", expected), "attempt %d", attempt)
					Expect(d).To(BeNumerically("<", expected+time.Second), "attempt %d", attempt)
				}
			}
		})

		It("should cap the exponential part", func() {
			for i := 0; i < 10; i++ {
				d := policy.Delay(10)
				Expect(d).To(BeNumerically(">=", 60*time.Second))
				Expect(d).To(BeNumerically("<", 61*time.Second))
			}
		})

		It("should treat negative attempts as zero", func() {
			d := policy.Delay(-3)
			Expect(d).To(BeNumerically(">=", 2*time.Second))
			Expect(d).To(BeNumerically("<", 3*time.Second))
		})

		It("should be deterministic without jitter", func() {
			p := limiting.BackoffPolicy{Base: 100 * time.Millisecond, Cap: time.Second}
			Expect(p.Delay(0)).To(Equal(100 * time.Millisecond))
			Expect(p.Delay(2)).To(Equal(400 * time.Millisecond))
			Expect(p.Delay(8)).To(Equal(time.Second))
		})
	})
})
