package sessions_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/sessions"
	"github.com/rtcbridge/rtcbridge/internal/test/fakes"
	"github.com/rtcbridge/rtcbridge/internal/types"
)

func TestSessions(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sessions Suite")
}

var _ = Describe("Manager", func() {
	var config *fakes.LimiterConfig
	var client *fakes.PlatformClient
	var coordinator *limiting.Coordinator
	var manager *sessions.Manager
	ctx := context.Background()

	BeforeEach(func() {
		config = fakes.NewLimiterConfig()
		client = fakes.NewPlatformClient()
		coordinator = limiting.NewCoordinator(config)
		manager = sessions.NewManager(config, coordinator, client)
	})

	AfterEach(func() {
		manager.Close()
		coordinator.Close()
	})

	Describe("ConnectChat()", func() {
		It("should connect once and reuse the session", func() {
			first, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.State()).To(Equal(types.StateConnected))

			second, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))
			Expect(client.ConnectUserCalls).To(Equal(1))
		})

		It("should collapse concurrent connections into one", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := manager.ConnectChat(ctx, "alice")
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()
			Expect(client.ConnectUserCalls).To(Equal(1))
		})

		It("should retry transient failures through the coordinator", func() {
			client.ConnectUserErrors = []error{errors.New("too many requests")}

			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.ConnectUserCalls).To(Equal(2))
		})

		It("should disconnect the previous identity before connecting another", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.ConnectChat(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Sessions[0].Disconnected).To(BeTrue())
			infos := manager.Sessions()
			Expect(infos).To(HaveLen(1))
			Expect(infos[0].Subject).To(Equal("bob"))
		})

		It("should require cleanup before reconnecting a session in error state", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			// Exhaust the retries with transport failures to poison the session
			transportErr := errors.New("websocket closed with code 1006")
			client.Sessions[0].SendMessageErrors = []error{transportErr, transportErr, transportErr, transportErr}
			err = manager.SendMessage(ctx, "alice", "alice:bob", "hello")
			Expect(errors.Is(err, types.ErrConnectionFailed)).To(BeTrue())

			_, err = manager.ConnectChat(ctx, "alice")
			Expect(err).To(MatchError(ContainSubstring("cleanup is required")))

			manager.CleanupSubject(ctx, "alice")
			coordinator.ClearSubject("alice")
			_, err = manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("SendMessage()", func() {
		It("should require a connected session", func() {
			err := manager.SendMessage(ctx, "alice", "alice:bob", "hello")
			Expect(err).To(MatchError(ContainSubstring("no connected chat session")))
		})

		It("should deliver through the session", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			Expect(manager.SendMessage(ctx, "alice", "alice:bob", "hello")).NotTo(HaveOccurred())
			Expect(client.Sessions[0].SentMessages).To(ConsistOf("hello"))
		})
	})

	Describe("OpenChannel()", func() {
		It("should create the channel once per subject pair regardless of order", func() {
			first, err := manager.OpenChannel(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())

			second, err := manager.OpenChannel(ctx, "bob", "alice")
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
			Expect(client.CreateChannelCalls).To(Equal(1))
			Expect(first.Id()).To(Equal("alice:bob"))
		})

		It("should not memoize failed creations", func() {
			client.CreateChannelErrors = []error{errors.New("invalid token")}

			_, err := manager.OpenChannel(ctx, "alice", "bob")
			Expect(err).To(HaveOccurred())

			channel, err := manager.OpenChannel(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(channel).NotTo(BeNil())
			Expect(client.CreateChannelCalls).To(Equal(2))
		})
	})

	Describe("StartCall()", func() {
		It("should open the channel, provision the video client and start the call", func() {
			call, err := manager.StartCall(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(call.ChannelId()).To(Equal("alice:bob"))
			Expect(client.CreateChannelCalls).To(Equal(1))
			Expect(client.CreateVideoClientCalls).To(Equal(1))
		})

		It("should reuse the cached video client for subsequent calls", func() {
			_, err := manager.StartCall(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			_, err = manager.StartCall(ctx, "alice", "carol")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.CreateVideoClientCalls).To(Equal(1))
			Expect(client.CreateChannelCalls).To(Equal(2))
		})

		It("should evict the video client when it reports a connection error", func() {
			_, err := manager.StartCall(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())

			client.Clients[0].FireConnectionError(errors.New("ice connection disconnected"))
			Expect(client.Clients[0].Disposed).To(BeTrue())

			_, err = manager.StartCall(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.CreateVideoClientCalls).To(Equal(2))
		})
	})

	Describe("CleanupSubject()", func() {
		It("should release every resource of the subject and be idempotent", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			call, err := manager.StartCall(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())

			manager.CleanupSubject(ctx, "alice")
			manager.CleanupSubject(ctx, "alice")

			Expect(call.(*fakes.Call).Ended).To(BeTrue())
			Expect(client.Clients[0].Disposed).To(BeTrue())
			Expect(client.Sessions[0].Disconnected).To(BeTrue())
			Expect(client.Channels[0].LeftBy).To(ConsistOf("alice"))
			Expect(manager.Sessions()).To(BeEmpty())

			// The channel cache entry is gone too
			_, err = manager.OpenChannel(ctx, "alice", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.CreateChannelCalls).To(Equal(2))
		})

		It("should swallow teardown failures", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			client.Sessions[0].DisconnectError = errors.New("user already left")

			manager.CleanupSubject(ctx, "alice")
			Expect(manager.Sessions()).To(BeEmpty())
		})
	})

	Describe("Close()", func() {
		It("should tear down all subjects and reject further use", func() {
			_, err := manager.ConnectChat(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			manager.Close()
			Expect(client.Sessions[0].Disconnected).To(BeTrue())

			_, err = manager.ConnectChat(ctx, "alice")
			Expect(errors.Is(err, types.ErrSessionClosed)).To(BeTrue())
		})
	})
})
