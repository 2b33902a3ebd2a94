package limiting_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/test/fakes"
	"github.com/rtcbridge/rtcbridge/internal/types"
)

var _ = Describe("SocketAttemptGate", func() {
	newGate := func(window time.Duration, maxAttempts int) *limiting.SocketAttemptGate {
		config := fakes.NewLimiterConfig()
		config.ConnectionAttemptWindowValue = window
		config.MaxConnectionAttemptsValue = maxAttempts
		return limiting.NewSocketAttemptGate(config)
	}

	Describe("ShouldBlockConnection()", func() {
		It("should allow up to the attempt ceiling per window", func() {
			g := newGate(time.Minute, 5)

			for i := 0; i < 5; i++ {
				Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeFalse(), "attempt %d", i)
			}
			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeTrue())
			// Blocked attempts don't consume allowance
			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeTrue())
		})

		It("should grant a fresh allowance when the window expires", func() {
			g := newGate(50*time.Millisecond, 2)

			Expect(g.ShouldBlockConnection("alice", types.OpUserConnect)).To(BeFalse())
			Expect(g.ShouldBlockConnection("alice", types.OpUserConnect)).To(BeFalse())
			Expect(g.ShouldBlockConnection("alice", types.OpUserConnect)).To(BeTrue())

			time.Sleep(70 * time.Millisecond)
			Expect(g.ShouldBlockConnection("alice", types.OpUserConnect)).To(BeFalse())
		})

		It("should track keys independently", func() {
			g := newGate(time.Minute, 1)

			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeFalse())
			Expect(g.ShouldBlockConnection("alice", types.OpUserConnect)).To(BeFalse())
			Expect(g.ShouldBlockConnection("bob", types.OpVideoCall)).To(BeFalse())
			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeTrue())
		})
	})

	Describe("ClearSubject()", func() {
		It("should reset the subject windows", func() {
			g := newGate(time.Minute, 1)

			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeFalse())
			Expect(g.ShouldBlockConnection("bob", types.OpVideoCall)).To(BeFalse())
			g.ClearSubject("alice")

			Expect(g.ShouldBlockConnection("alice", types.OpVideoCall)).To(BeFalse())
			Expect(g.ShouldBlockConnection("bob", types.OpVideoCall)).To(BeTrue())
		})
	})
})
