package limiting_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/test/fakes"
	"github.com/rtcbridge/rtcbridge/internal/types"
)

var _ = Describe("RateLimitGate", func() {
	newGate := func(interval time.Duration, cooldown time.Duration) *limiting.RateLimitGate {
		config := fakes.NewLimiterConfig()
		config.OperationIntervalValue = interval
		config.BlockCooldownValue = cooldown
		return limiting.NewRateLimitGate(config)
	}

	Describe("ShouldBlock()", func() {
		It("should enforce the minimum interval between attempts", func() {
			g := newGate(60*time.Millisecond, time.Minute)

			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())
			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeTrue())

			time.Sleep(80 * time.Millisecond)
			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())
		})

		It("should not push the window forward on blocked attempts", func() {
			g := newGate(60*time.Millisecond, time.Minute)

			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())

			// Hammering the gate must not extend the wait beyond the
			// interval since the last passed attempt
			deadline := time.Now().Add(200 * time.Millisecond)
			for g.ShouldBlock("alice", types.OpSendMessage) {
				if time.Now().After(deadline) {
					Fail("gate did not open after the interval elapsed")
				}
				time.Sleep(5 * time.Millisecond)
			}
		})

		It("should track operation keys independently", func() {
			g := newGate(time.Minute, time.Minute)

			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())
			Expect(g.ShouldBlock("alice", types.OpChannelCreate)).To(BeFalse())
			Expect(g.ShouldBlock("bob", types.OpSendMessage)).To(BeFalse())
			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeTrue())
		})
	})

	Describe("Block()", func() {
		It("should hold the key until the cooldown expires", func() {
			g := newGate(0, 60*time.Millisecond)
			key := types.NewOperationKey("alice", types.OpVideoCall)

			g.Block(key)
			Expect(g.IsBlocked(key)).To(BeTrue())
			Expect(g.ShouldBlock("alice", types.OpVideoCall)).To(BeTrue())
			Expect(g.BlockedLen()).To(Equal(1))

			Eventually(func() bool {
				return g.IsBlocked(key)
			}, 1*time.Second, 10*time.Millisecond).Should(BeFalse())
			Expect(g.ShouldBlock("alice", types.OpVideoCall)).To(BeFalse())
		})

		It("should be lifted by Unblock()", func() {
			g := newGate(0, time.Minute)
			key := types.NewOperationKey("alice", types.OpVideoCall)

			g.Block(key)
			g.Unblock(key)
			Expect(g.IsBlocked(key)).To(BeFalse())
			Expect(g.BlockedLen()).To(BeZero())
		})
	})

	Describe("ClearSubject()", func() {
		It("should remove the subject entries only", func() {
			g := newGate(time.Minute, time.Minute)

			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())
			Expect(g.ShouldBlock("bob", types.OpSendMessage)).To(BeFalse())
			g.Block(types.NewOperationKey("alice", types.OpVideoCall))
			g.Block(types.NewOperationKey("bob", types.OpVideoCall))

			g.ClearSubject("alice")

			Expect(g.ShouldBlock("alice", types.OpSendMessage)).To(BeFalse())
			Expect(g.IsBlocked(types.NewOperationKey("alice", types.OpVideoCall))).To(BeFalse())
			Expect(g.ShouldBlock("bob", types.OpSendMessage)).To(BeTrue())
			Expect(g.BlockedKeys()).To(ConsistOf(types.NewOperationKey("bob", types.OpVideoCall)))
		})
	})

	Describe("Close()", func() {
		It("should drop the cooldowns and ignore further blocks", func() {
			g := newGate(0, time.Minute)
			key := types.NewOperationKey("alice", types.OpVideoCall)

			g.Block(key)
			g.Close()
			Expect(g.BlockedLen()).To(BeZero())

			g.Block(key)
			Expect(g.BlockedLen()).To(BeZero())
		})
	})
})
