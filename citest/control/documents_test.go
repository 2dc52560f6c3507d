package control_test

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streekit/streekeeper/citest/testutil"
	"github.com/streekit/streekeeper/internal/control"
)

var _ = Describe("Document features", func() {
	var (
		daemon *testutil.TestDaemon
		client *control.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		scenario := testutil.DefaultScenario()
		scenario.Settings.DocumentSelector = []string{"**/*.rb"}

		var err error
		daemon, err = testutil.StartTestDaemon(testutil.WithScenario(scenario))
		Expect(err).NotTo(HaveOccurred(), "Failed to start test daemon")

		client = daemon.Client()
		ctx = context.Background()
	})

	AfterEach(func() {
		if daemon != nil {
			daemon.Stop()
		}
	})

	It("refuses feature requests while the server is down", func() {
		_, err := client.Visualize(ctx, daemon.DocumentPath("app.rb"))

		var apiErr *control.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusConflict))
		Expect(apiErr.Code).To(Equal("SERVER_NOT_RUNNING"))
	})

	Context("with the server running", func() {
		BeforeEach(func() {
			_, err := client.StartServer(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("renders the syntax tree", func() {
			result, err := client.Visualize(ctx, daemon.DocumentPath("app.rb"))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Tree).To(Equal(daemon.Scenario.Tree))
		})

		It("resolves workspace-relative paths", func() {
			result, err := client.Visualize(ctx, "app.rb")
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Tree).To(Equal(daemon.Scenario.Tree))
		})

		It("previews formatting as a unified diff", func() {
			result, err := client.Format(ctx, daemon.DocumentPath("app.rb"))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Changed).To(BeTrue())
			Expect(result.Diff).To(ContainSubstring("--- app.rb"))
			Expect(result.Diff).To(ContainSubstring("+++ app.rb"))
			Expect(result.Diff).To(ContainSubstring("@@"))
		})

		It("reports already formatted files unchanged", func() {
			path, err := daemon.WriteDocument("tidy.rb", "puts 'tidy'\n")
			Expect(err).NotTo(HaveOccurred())

			result, err := client.Format(ctx, path)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Changed).To(BeFalse())
			Expect(result.Diff).To(BeEmpty())
		})

		It("rejects files outside the document selector", func() {
			path, err := daemon.WriteDocument("README.md", "# readme\n")
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Visualize(ctx, path)
			var apiErr *control.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("404s when the file does not exist", func() {
			_, err := client.Format(ctx, daemon.DocumentPath("ghost.rb"))

			var apiErr *control.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
