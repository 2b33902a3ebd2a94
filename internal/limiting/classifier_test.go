package limiting_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
)

var _ = Describe("classifier", func() {
	Describe("IsRateLimitError()", func() {
		It("should match the known throttling messages", func() {
			messages := []string{
				"Too Many Requests",
				"rate limit hit for user",
				"request failed with status 429",
				"request rejected (error code 9)",
				"monthly quota exceeded",
				"channel limit exceeded",
				"failed to create channel",
			}
			for _, m := range messages {
				Expect(limiting.IsRateLimitError(errors.New(m))).To(BeTrue(), m)
			}
		})

		It("should not match unrelated errors", func() {
			Expect(limiting.IsRateLimitError(errors.New("invalid token"))).To(BeFalse())
			Expect(limiting.IsRateLimitError(nil)).To(BeFalse())
		})
	})

	Describe("IsConnectionError()", func() {
		It("should match the known transport messages", func() {
			messages := []string{
				"WebSocket closed unexpectedly",
				"video connection failed",
				"closed with code 1006",
				"request timed out",
				"network error while dialing",
				"connection closed by peer",
				"PeerConnection in failed state",
				"ICE connection disconnected",
			}
			for _, m := range messages {
				Expect(limiting.IsConnectionError(errors.New(m))).To(BeTrue(), m)
			}
		})

		It("should treat deadline expirations as connection failures", func() {
			Expect(limiting.IsConnectionError(context.DeadlineExceeded)).To(BeTrue())
			Expect(limiting.IsConnectionError(fmt.Errorf("starting call: %w", context.DeadlineExceeded))).To(BeTrue())
		})

		It("should not match unrelated errors", func() {
			Expect(limiting.IsConnectionError(errors.New("invalid token"))).To(BeFalse())
			Expect(limiting.IsConnectionError(context.Canceled)).To(BeFalse())
			Expect(limiting.IsConnectionError(nil)).To(BeFalse())
		})
	})

	Describe("IsAlreadyClosedError()", func() {
		It("should match the known teardown messages", func() {
			messages := []string{
				"user already left the channel",
				"client already disconnected",
				"session already closed",
				"not connected",
			}
			for _, m := range messages {
				Expect(limiting.IsAlreadyClosedError(errors.New(m))).To(BeTrue(), m)
			}
		})

		It("should not match transient failures", func() {
			Expect(limiting.IsAlreadyClosedError(errors.New("too many requests"))).To(BeFalse())
			Expect(limiting.IsAlreadyClosedError(nil)).To(BeFalse())
		})
	})
})
