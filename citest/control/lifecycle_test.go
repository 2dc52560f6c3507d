package control_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streekit/streekeeper/citest/testutil"
	"github.com/streekit/streekeeper/internal/control"
)

var _ = Describe("Server lifecycle", func() {
	var (
		daemon *testutil.TestDaemon
		client *control.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		daemon, err = testutil.StartTestDaemon()
		Expect(err).NotTo(HaveOccurred(), "Failed to start test daemon")

		client = daemon.Client()
		ctx = context.Background()
	})

	AfterEach(func() {
		if daemon != nil {
			daemon.Stop()
		}
	})

	It("reports idle before the first start", func() {
		st, err := client.Status(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(st.State).To(Equal("idle"))
		Expect(st.PID).To(BeZero())
		Expect(st.LaunchID).To(BeEmpty())
	})

	It("starts the language server", func() {
		st, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(st.State).To(Equal("running"))
		Expect(st.PID).NotTo(BeZero())
		Expect(st.LaunchID).NotTo(BeEmpty())
		Expect(st.StartedAt).To(BeNumerically(">", 0))
		Expect(st.Source).To(Equal("global"))
		Expect(strings.Join(st.Command, " ")).To(
			Equal("stree lsp --plugins=single_quotes"))

		Expect(daemon.Launcher.Attempts()).To(Equal(1))
	})

	It("treats start as a no-op while running", func() {
		first, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		second, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.LaunchID).To(Equal(first.LaunchID))
		Expect(daemon.Launcher.Attempts()).To(Equal(1))
	})

	It("stops the language server", func() {
		_, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		st, err := client.StopServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(st.State).To(Equal("idle"))
		Expect(st.PID).To(BeZero())
	})

	It("restarts with a fresh launch", func() {
		first, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		restarted, err := client.RestartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(restarted.State).To(Equal("running"))
		Expect(restarted.LaunchID).NotTo(Equal(first.LaunchID))
		Expect(daemon.Launcher.Attempts()).To(Equal(2))
	})

	It("serves recent log lines", func() {
		_, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		lines, err := client.Logs(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).NotTo(BeEmpty())
	})

	It("reflects the settings the server was launched with", func() {
		st, err := client.StartServer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(st.Settings).NotTo(BeNil())
		Expect(st.Settings.SingleQuotes).To(BeTrue())
	})
})
